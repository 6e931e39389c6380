package mongo

import (
	"context"
	"fmt"
	apperrors "roomly/pkg/errors"

	"go.mongodb.org/mongo-driver/mongo"
)

// TransactionFunc runs inside a transaction. Inside a Mongo transaction ctx is a
// mongo.SessionContext, so repositories called with it join the transaction.
type TransactionFunc func(ctx context.Context) error

type TransactionManager interface {
	ExecuteTransaction(ctx context.Context, fn TransactionFunc) error
}

type mongoTransactionManager struct {
	client *mongo.Client
}

func NewTransactionManager(client *mongo.Client) TransactionManager {
	return &mongoTransactionManager{
		client: client,
	}
}

func (m *mongoTransactionManager) ExecuteTransaction(ctx context.Context, fn TransactionFunc) error {
	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (any, error) {
		return nil, fn(sessCtx)
	})

	if err != nil {
		if apperrors.IsAppError(err) {
			return err
		}
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}

type directTransactionManager struct{}

// Direct runs fn without a transaction. Used against standalone servers and in tests.
func Direct() TransactionManager {
	return directTransactionManager{}
}

func (directTransactionManager) ExecuteTransaction(ctx context.Context, fn TransactionFunc) error {
	return fn(ctx)
}

// IsSessionContext reports whether ctx already carries a Mongo session.
func IsSessionContext(ctx context.Context) bool {
	_, ok := ctx.(mongo.SessionContext)
	return ok
}
