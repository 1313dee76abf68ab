package domain

// StatPoint is a single labelled count on the dashboard.
type StatPoint struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}

// DashboardStats is recomputed on every request and never persisted.
type DashboardStats struct {
	RefStats           []StatPoint          `json:"ref_stats"`
	QuestionCategories []StatPoint          `json:"question_categories"`
	DailyVisits        []StatPoint          `json:"daily_visits"`
	LatestVisitors     []Visitor            `json:"latest_visitors"`
	RecentQuestions    []ConversationRecord `json:"recent_questions"`
}
