package redis

import (
	"context"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Shvan11/ShwNodApp-sub005/internal/domain"
)

// Keys the messaging collaborator maintains. This layer only reads them.
const (
	clientStatusKey = "wa:client"
	stateKey        = "wa:state"
	personsKey      = "wa:persons"
)

// MessagingStore implements domain.MessagingGateway over the state the
// messaging subsystem keeps in Redis.
type MessagingStore struct {
	rdb *goredis.Client
}

// NewMessagingStore creates the store over a shared client.
func NewMessagingStore(rdb *goredis.Client) *MessagingStore {
	return &MessagingStore{rdb: rdb}
}

// QueryClientStatus reads the messaging client's connection state. Missing
// fields read as false, so an empty hash means "no client".
func (s *MessagingStore) QueryClientStatus(ctx context.Context) (domain.ClientStatus, error) {
	fields, err := s.rdb.HGetAll(ctx, clientStatusKey).Result()
	if err != nil {
		return domain.ClientStatus{}, fmt.Errorf("failed to read messaging client status: %w", err)
	}
	return domain.ClientStatus{
		Active:       parseBool(fields["active"]),
		Initializing: parseBool(fields["initializing"]),
		HasClient:    parseBool(fields["has_client"]),
	}, nil
}

// DumpState returns the full messaging progress snapshot.
func (s *MessagingStore) DumpState(ctx context.Context) (*domain.MessagingState, error) {
	pipe := s.rdb.Pipeline()
	stateCmd := pipe.HGetAll(ctx, stateKey)
	viewerCmd := pipe.SCard(ctx, viewersKey)
	personsCmd := pipe.SMembers(ctx, personsKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to dump messaging state: %w", err)
	}

	fields := stateCmd.Val()
	return &domain.MessagingState{
		SentCount:         parseInt(fields["sent_count"]),
		FailedCount:       parseInt(fields["failed_count"]),
		Finished:          parseBool(fields["finished"]),
		QRPayload:         fields["qr_payload"],
		ActiveViewerCount: int(viewerCmd.Val()),
		KnownPersons:      personsCmd.Val(),
	}, nil
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}

func parseInt(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
