package database

import (
	"context"
	"errors"
	"fmt"

	apperrors "concert-tickets/errors"
	"concert-tickets/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo is a Store on MongoDB. Units of work are multi-document session
// transactions, which require the server to run as a replica set.
type Mongo struct {
	client   *mongo.Client
	concerts *mongo.Collection
	tickets  *mongo.Collection
	holdings *mongo.Collection
}

func OpenMongo(ctx context.Context, connString string, database string) (*Mongo, error) {
	clientOptions := options.Client().ApplyURI(connString)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to the db: %v", err)
	}

	err = client.Ping(ctx, nil)
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("db is not available: %v", err)
	}

	db := client.Database(database)
	m := &Mongo{
		client:   client,
		concerts: db.Collection("concerts"),
		tickets:  db.Collection("tickets"),
		holdings: db.Collection("holdings"),
	}

	_, err = m.tickets.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner", Value: 1}}},
		{Keys: bson.D{{Key: "concert_id", Value: 1}}},
		{Keys: bson.D{{Key: "token", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("cannot create ticket indexes: %v", err)
	}
	return m, nil
}

func (m *Mongo) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("cannot start db session: %v", err)
	}
	defer session.EndSession(ctx)

	// One attempt only: a transient conflict surfaces as ErrConflict
	// instead of being retried by the driver.
	err = mongo.WithSession(ctx, session, func(sessCtx mongo.SessionContext) error {
		if err := sessCtx.StartTransaction(); err != nil {
			return fmt.Errorf("cannot start transaction: %w", err)
		}
		if err := fn(sessCtx, &mongoTx{store: m}); err != nil {
			_ = sessCtx.AbortTransaction(sessCtx)
			return err
		}
		return sessCtx.CommitTransaction(sessCtx)
	})
	return mapMongoError(err)
}

func (m *Mongo) ListConcerts(ctx context.Context) ([]model.Concert, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := m.concerts.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("server side problem occured while reading concerts: %v", err)
	}
	out := make([]model.Concert, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("server side problem occured while reading concerts: %v", err)
	}
	return out, nil
}

func (m *Mongo) ListTicketsByOwner(ctx context.Context, owner model.Identity) ([]model.Ticket, error) {
	return m.findTickets(ctx, bson.D{{Key: "owner", Value: owner}})
}

func (m *Mongo) ListTicketsByConcert(ctx context.Context, concertID string) ([]model.Ticket, error) {
	return m.findTickets(ctx, bson.D{{Key: "concert_id", Value: concertID}})
}

func (m *Mongo) findTickets(ctx context.Context, filter bson.D) ([]model.Ticket, error) {
	opts := options.Find().SetSort(bson.D{{Key: "issued_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := m.tickets.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("server side problem occured while reading tickets: %v", err)
	}
	out := make([]model.Ticket, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("server side problem occured while reading tickets: %v", err)
	}
	return out, nil
}

func (m *Mongo) Close() error {
	return m.client.Disconnect(context.Background())
}

// mongoTx issues every call with the session context handed to it, which
// binds the operation to the surrounding transaction.
type mongoTx struct {
	store *Mongo
}

func (tx *mongoTx) CreateConcert(ctx context.Context, concert model.Concert) error {
	_, err := tx.store.concerts.InsertOne(ctx, concert)
	return mapMongoError(err)
}

func (tx *mongoTx) GetConcert(ctx context.Context, id string) (model.Concert, error) {
	var concert model.Concert
	err := tx.store.concerts.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&concert)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Concert{}, concertNotFound(id)
	}
	if err != nil {
		return model.Concert{}, mapMongoError(err)
	}
	return concert, nil
}

func (tx *mongoTx) SaveConcert(ctx context.Context, concert model.Concert) error {
	res, err := tx.store.concerts.ReplaceOne(ctx, bson.D{{Key: "_id", Value: concert.ID}}, concert)
	if err != nil {
		return mapMongoError(err)
	}
	if res.MatchedCount == 0 {
		return concertNotFound(concert.ID)
	}
	return nil
}

func (tx *mongoTx) CloseConcert(ctx context.Context, id string) error {
	res, err := tx.store.concerts.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return mapMongoError(err)
	}
	if res.DeletedCount == 0 {
		return concertNotFound(id)
	}
	return nil
}

func (tx *mongoTx) CreateTicket(ctx context.Context, ticket model.Ticket) error {
	_, err := tx.store.tickets.InsertOne(ctx, ticket)
	return mapMongoError(err)
}

func (tx *mongoTx) GetTicket(ctx context.Context, id string) (model.Ticket, error) {
	var ticket model.Ticket
	err := tx.store.tickets.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&ticket)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Ticket{}, ticketNotFound(id)
	}
	if err != nil {
		return model.Ticket{}, mapMongoError(err)
	}
	return ticket, nil
}

func (tx *mongoTx) SaveTicket(ctx context.Context, ticket model.Ticket) error {
	res, err := tx.store.tickets.ReplaceOne(ctx, bson.D{{Key: "_id", Value: ticket.ID}}, ticket)
	if err != nil {
		return mapMongoError(err)
	}
	if res.MatchedCount == 0 {
		return ticketNotFound(ticket.ID)
	}
	return nil
}

func (tx *mongoTx) GetHolding(ctx context.Context, token model.Identity) (model.Holding, error) {
	var holding model.Holding
	err := tx.store.holdings.FindOne(ctx, bson.D{{Key: "_id", Value: token}}).Decode(&holding)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Holding{}, holdingNotFound(token)
	}
	if err != nil {
		return model.Holding{}, mapMongoError(err)
	}
	return holding, nil
}

func (tx *mongoTx) CreateHolding(ctx context.Context, holding model.Holding) error {
	_, err := tx.store.holdings.InsertOne(ctx, holding)
	return mapMongoError(err)
}

// mapMongoError folds duplicate keys and transient write conflicts into
// errors.ErrConflict.
func mapMongoError(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", apperrors.ErrConflict, err)
	}
	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) && serverErr.HasErrorLabel("TransientTransactionError") {
		return fmt.Errorf("%w: %v", apperrors.ErrConflict, err)
	}
	return err
}

var _ Store = (*Mongo)(nil)
