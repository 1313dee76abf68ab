package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/oklog/ulid/v2"

	"interview-gate/internal/domain"
)

const (
	pkPrefixVisitor = "VISITOR#"
	pkPrefixSession = "SESSION#"
	skProfile       = "PROFILE"
	skPrefixMsg     = "MSG#"

	recencyIndex      = "GSI1"
	gsiVisitors       = "VISITORS"
	gsiConversations  = "CONVERSATIONS"
	maxPageSize int32 = 100

	// sortableTime keeps a fixed width so sort keys order chronologically.
	sortableTime = "2006-01-02T15:04:05.000000000Z07:00"
)

// ErrNotFound is returned when a visitor does not exist.
var ErrNotFound = errors.New("repository: not found")

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Client stores visitors and conversation records in one DynamoDB table.
// Both record kinds are projected onto GSI1 under a fixed partition so the
// newest items can be read with a single descending query.
type Client struct {
	api       dynamodbAPI
	tableName string
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName}, nil
}

func visitorPK(id string) string {
	return pkPrefixVisitor + id
}

func sessionPK(sessionID string) string {
	return pkPrefixSession + sessionID
}

func formatTime(ts time.Time) string {
	return ts.UTC().Format(sortableTime)
}

// CreateVisitor persists a new visitor. Session ids are never reused, so an
// existing item is treated as a conflict.
func (c *Client) CreateVisitor(ctx context.Context, v domain.Visitor) error {
	if strings.TrimSpace(v.ID) == "" {
		return errors.New("repository: CreateVisitor: id is required")
	}
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                visitorItem(v),
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: CreateVisitor: %w", err)
	}
	return nil
}

// GetVisitor returns the visitor registered under sessionID or ErrNotFound.
func (c *Client) GetVisitor(ctx context.Context, sessionID string) (domain.Visitor, error) {
	if strings.TrimSpace(sessionID) == "" {
		return domain.Visitor{}, ErrNotFound
	}
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: visitorPK(sessionID)},
			"SK": &types.AttributeValueMemberS{Value: skProfile},
		},
	})
	if err != nil {
		return domain.Visitor{}, fmt.Errorf("repository: GetVisitor get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.Visitor{}, ErrNotFound
	}
	v, err := itemToVisitor(out.Item)
	if err != nil {
		return domain.Visitor{}, fmt.Errorf("repository: GetVisitor unmarshal: %w", err)
	}
	return v, nil
}

// RecentVisitors returns up to limit visitors, newest first.
func (c *Client) RecentVisitors(ctx context.Context, limit int) ([]domain.Visitor, error) {
	items, err := c.queryRecent(ctx, gsiVisitors, limit)
	if err != nil {
		return nil, fmt.Errorf("repository: RecentVisitors query: %w", err)
	}
	out := make([]domain.Visitor, 0, len(items))
	for _, item := range items {
		v, err := itemToVisitor(item)
		if err != nil {
			return nil, fmt.Errorf("repository: RecentVisitors unmarshal: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}

// AppendConversation writes a new conversation record and returns it with its
// assigned id. A zero timestamp is replaced with the current time.
func (c *Client) AppendConversation(ctx context.Context, rec domain.ConversationRecord) (domain.ConversationRecord, error) {
	if strings.TrimSpace(rec.SessionID) == "" {
		return domain.ConversationRecord{}, errors.New("repository: AppendConversation: session id is required")
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	rec.Timestamp = rec.Timestamp.UTC()
	if rec.ID == "" {
		rec.ID = newRecordID(rec.Timestamp)
	}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                conversationItem(rec),
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return domain.ConversationRecord{}, fmt.Errorf("repository: AppendConversation: %w", err)
	}
	return rec, nil
}

// RecentConversations returns up to limit conversation records, newest first.
func (c *Client) RecentConversations(ctx context.Context, limit int) ([]domain.ConversationRecord, error) {
	items, err := c.queryRecent(ctx, gsiConversations, limit)
	if err != nil {
		return nil, fmt.Errorf("repository: RecentConversations query: %w", err)
	}
	out := make([]domain.ConversationRecord, 0, len(items))
	for _, item := range items {
		rec, err := itemToConversation(item)
		if err != nil {
			return nil, fmt.Errorf("repository: RecentConversations unmarshal: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// queryRecent pages through GSI1 newest first until limit items are read.
func (c *Client) queryRecent(ctx context.Context, partition string, limit int) ([]map[string]types.AttributeValue, error) {
	if limit <= 0 {
		return nil, nil
	}
	var (
		items    []map[string]types.AttributeValue
		startKey map[string]types.AttributeValue
	)
	for len(items) < limit {
		page := int32(limit - len(items))
		if page > maxPageSize {
			page = maxPageSize
		}
		out, err := c.api.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(c.tableName),
			IndexName:              aws.String(recencyIndex),
			KeyConditionExpression: aws.String("GSI1PK = :pk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: partition},
			},
			ScanIndexForward:  aws.Bool(false),
			Limit:             aws.Int32(page),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, err
		}
		if out == nil {
			break
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// newRecordID returns a ULID so record ids sort with their timestamps.
var newRecordID = func(ts time.Time) string {
	return ulid.MustNew(ulid.Timestamp(ts), ulid.DefaultEntropy()).String()
}

func visitorItem(v domain.Visitor) map[string]types.AttributeValue {
	created := formatTime(v.CreatedAt)
	return map[string]types.AttributeValue{
		"PK":                 &types.AttributeValueMemberS{Value: visitorPK(v.ID)},
		"SK":                 &types.AttributeValueMemberS{Value: skProfile},
		"GSI1PK":             &types.AttributeValueMemberS{Value: gsiVisitors},
		"GSI1SK":             &types.AttributeValueMemberS{Value: created + "#" + v.ID},
		"sessionId":          &types.AttributeValueMemberS{Value: v.ID},
		"visitorName":        &types.AttributeValueMemberS{Value: v.VisitorName},
		"visitorAffiliation": &types.AttributeValueMemberS{Value: v.VisitorAffiliation},
		"visitRef":           &types.AttributeValueMemberS{Value: v.VisitRef},
		"createdAt":          &types.AttributeValueMemberS{Value: created},
	}
}

func conversationItem(rec domain.ConversationRecord) map[string]types.AttributeValue {
	ts := formatTime(rec.Timestamp)
	item := map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: sessionPK(rec.SessionID)},
		"SK":        &types.AttributeValueMemberS{Value: skPrefixMsg + rec.ID},
		"GSI1PK":    &types.AttributeValueMemberS{Value: gsiConversations},
		"GSI1SK":    &types.AttributeValueMemberS{Value: ts + "#" + rec.ID},
		"id":        &types.AttributeValueMemberS{Value: rec.ID},
		"sessionId": &types.AttributeValueMemberS{Value: rec.SessionID},
		"question":  &types.AttributeValueMemberS{Value: rec.Question},
		"answer":    &types.AttributeValueMemberS{Value: rec.Answer},
		"isBlocked": &types.AttributeValueMemberBOOL{Value: rec.IsBlocked},
		"timestamp": &types.AttributeValueMemberS{Value: ts},
	}
	if rec.Category != "" {
		item["category"] = &types.AttributeValueMemberS{Value: rec.Category}
	}
	return item
}

// itemToVisitor converts a DynamoDB attribute map to a Visitor. An unparseable
// createdAt leaves CreatedAt zero.
func itemToVisitor(item map[string]types.AttributeValue) (domain.Visitor, error) {
	id, err := strAttr(item, "sessionId")
	if err != nil {
		return domain.Visitor{}, err
	}
	name, _ := strAttr(item, "visitorName")               // allow empty
	affiliation, _ := strAttr(item, "visitorAffiliation") // allow empty
	ref, _ := strAttr(item, "visitRef")                   // allow empty
	created, _ := strAttr(item, "createdAt")

	return domain.Visitor{
		ID:                 id,
		VisitorName:        name,
		VisitorAffiliation: affiliation,
		VisitRef:           ref,
		CreatedAt:          parseTime(created),
	}, nil
}

func itemToConversation(item map[string]types.AttributeValue) (domain.ConversationRecord, error) {
	id, err := strAttr(item, "id")
	if err != nil {
		return domain.ConversationRecord{}, err
	}
	sessionID, err := strAttr(item, "sessionId")
	if err != nil {
		return domain.ConversationRecord{}, err
	}
	question, err := strAttr(item, "question")
	if err != nil {
		return domain.ConversationRecord{}, err
	}
	answer, _ := strAttr(item, "answer")     // allow empty
	category, _ := strAttr(item, "category") // allow missing
	blocked, err := boolAttr(item, "isBlocked")
	if err != nil {
		return domain.ConversationRecord{}, err
	}
	ts, _ := strAttr(item, "timestamp")

	return domain.ConversationRecord{
		ID:        id,
		SessionID: sessionID,
		Question:  question,
		Answer:    answer,
		Category:  category,
		IsBlocked: blocked,
		Timestamp: parseTime(ts),
	}, nil
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

// boolAttr treats a missing attribute as false.
func boolAttr(item map[string]types.AttributeValue, key string) (bool, error) {
	v, ok := item[key]
	if !ok {
		return false, nil
	}
	b, ok := v.(*types.AttributeValueMemberBOOL)
	if !ok {
		return false, fmt.Errorf("repository: attribute %q is not a boolean", key)
	}
	return b.Value, nil
}
