package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "concert-tickets/errors"
	"concert-tickets/model"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Postgres is a Store on PostgreSQL through gorm. Rows read inside a unit
// of work are locked FOR UPDATE, so concurrent units on the same concert
// or ticket queue behind each other.
type Postgres struct {
	db *gorm.DB
}

type concertRow struct {
	ID           string    `gorm:"column:id;primaryKey"`
	Authority    string    `gorm:"column:authority;not null"`
	Name         string    `gorm:"column:name;size:50;not null"`
	Venue        string    `gorm:"column:venue;size:50;not null"`
	Date         string    `gorm:"column:date;size:10;not null"`
	TotalTickets int32     `gorm:"column:total_tickets;not null"`
	TicketsSold  int32     `gorm:"column:tickets_sold;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (concertRow) TableName() string { return "concerts" }

type ticketRow struct {
	ID         string     `gorm:"column:id;primaryKey"`
	Owner      string     `gorm:"column:owner;not null;index"`
	Token      string     `gorm:"column:token;not null;uniqueIndex"`
	ConcertID  string     `gorm:"column:concert_id;not null;index"`
	TicketType string     `gorm:"column:ticket_type;size:20;not null"`
	SeatNumber *string    `gorm:"column:seat_number;size:10"`
	Used       bool       `gorm:"column:used;not null"`
	IssuedAt   time.Time  `gorm:"column:issued_at;not null"`
	RedeemedAt *time.Time `gorm:"column:redeemed_at"`
}

func (ticketRow) TableName() string { return "tickets" }

type holdingRow struct {
	Token     string    `gorm:"column:token;primaryKey"`
	Holder    string    `gorm:"column:holder;not null;index"`
	Authority string    `gorm:"column:authority;not null"`
	Amount    int64     `gorm:"column:amount;not null"`
	Decimals  int16     `gorm:"column:decimals;not null"`
	MintedAt  time.Time `gorm:"column:minted_at;not null"`
}

func (holdingRow) TableName() string { return "holdings" }

func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open gorm postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("resolve postgres sql db handle: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := db.WithContext(ctx).AutoMigrate(&concertRow{}, &ticketRow{}, &holdingRow{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate postgres schema: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &postgresTx{db: tx})
	})
	return mapPostgresError(err)
}

func (p *Postgres) ListConcerts(ctx context.Context) ([]model.Concert, error) {
	var rows []concertRow
	if err := p.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]model.Concert, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

func (p *Postgres) ListTicketsByOwner(ctx context.Context, owner model.Identity) ([]model.Ticket, error) {
	return p.findTickets(ctx, "owner = ?", owner.String())
}

func (p *Postgres) ListTicketsByConcert(ctx context.Context, concertID string) ([]model.Ticket, error) {
	return p.findTickets(ctx, "concert_id = ?", concertID)
}

func (p *Postgres) findTickets(ctx context.Context, query string, arg any) ([]model.Ticket, error) {
	var rows []ticketRow
	if err := p.db.WithContext(ctx).
		Where(query, arg).
		Order("issued_at ASC, id ASC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	out := make([]model.Ticket, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

func (p *Postgres) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type postgresTx struct {
	db *gorm.DB
}

func (tx *postgresTx) CreateConcert(_ context.Context, concert model.Concert) error {
	row := concertRowFromModel(concert)
	return mapPostgresError(tx.db.Create(&row).Error)
}

func (tx *postgresTx) GetConcert(_ context.Context, id string) (model.Concert, error) {
	var row concertRow
	if err := tx.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&row).
		Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Concert{}, concertNotFound(id)
		}
		return model.Concert{}, err
	}
	return row.toModel(), nil
}

func (tx *postgresTx) SaveConcert(_ context.Context, concert model.Concert) error {
	res := tx.db.Model(&concertRow{}).
		Where("id = ?", concert.ID).
		Updates(map[string]any{
			"authority":     concert.Authority.String(),
			"name":          concert.Name,
			"venue":         concert.Venue,
			"date":          concert.Date,
			"total_tickets": int32(concert.TotalTickets),
			"tickets_sold":  int32(concert.TicketsSold),
			"updated_at":    concert.UpdatedAt,
		})
	if res.Error != nil {
		return mapPostgresError(res.Error)
	}
	if res.RowsAffected == 0 {
		return concertNotFound(concert.ID)
	}
	return nil
}

func (tx *postgresTx) CloseConcert(_ context.Context, id string) error {
	res := tx.db.Where("id = ?", id).Delete(&concertRow{})
	if res.Error != nil {
		return mapPostgresError(res.Error)
	}
	if res.RowsAffected == 0 {
		return concertNotFound(id)
	}
	return nil
}

func (tx *postgresTx) CreateTicket(_ context.Context, ticket model.Ticket) error {
	row := ticketRowFromModel(ticket)
	return mapPostgresError(tx.db.Create(&row).Error)
}

func (tx *postgresTx) GetTicket(_ context.Context, id string) (model.Ticket, error) {
	var row ticketRow
	if err := tx.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&row).
		Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Ticket{}, ticketNotFound(id)
		}
		return model.Ticket{}, err
	}
	return row.toModel(), nil
}

func (tx *postgresTx) SaveTicket(_ context.Context, ticket model.Ticket) error {
	res := tx.db.Model(&ticketRow{}).
		Where("id = ?", ticket.ID).
		Updates(map[string]any{
			"used":        ticket.Used,
			"redeemed_at": ticket.RedeemedAt,
			"ticket_type": ticket.TicketType,
			"seat_number": ticket.SeatNumber,
		})
	if res.Error != nil {
		return mapPostgresError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ticketNotFound(ticket.ID)
	}
	return nil
}

func (tx *postgresTx) GetHolding(_ context.Context, token model.Identity) (model.Holding, error) {
	var row holdingRow
	if err := tx.db.Where("token = ?", token.String()).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Holding{}, holdingNotFound(token)
		}
		return model.Holding{}, err
	}
	return model.Holding{
		Token:     model.Identity(row.Token),
		Holder:    model.Identity(row.Holder),
		Authority: model.Identity(row.Authority),
		Amount:    uint64(row.Amount),
		Decimals:  uint8(row.Decimals),
		MintedAt:  row.MintedAt,
	}, nil
}

func (tx *postgresTx) CreateHolding(_ context.Context, holding model.Holding) error {
	row := holdingRow{
		Token:     holding.Token.String(),
		Holder:    holding.Holder.String(),
		Authority: holding.Authority.String(),
		Amount:    int64(holding.Amount),
		Decimals:  int16(holding.Decimals),
		MintedAt:  holding.MintedAt,
	}
	return mapPostgresError(tx.db.Create(&row).Error)
}

func concertRowFromModel(c model.Concert) concertRow {
	return concertRow{
		ID:           c.ID,
		Authority:    c.Authority.String(),
		Name:         c.Name,
		Venue:        c.Venue,
		Date:         c.Date,
		TotalTickets: int32(c.TotalTickets),
		TicketsSold:  int32(c.TicketsSold),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func (r concertRow) toModel() model.Concert {
	return model.Concert{
		ID:           r.ID,
		Authority:    model.Identity(r.Authority),
		Name:         r.Name,
		Venue:        r.Venue,
		Date:         r.Date,
		TotalTickets: uint16(r.TotalTickets),
		TicketsSold:  uint16(r.TicketsSold),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func ticketRowFromModel(t model.Ticket) ticketRow {
	return ticketRow{
		ID:         t.ID,
		Owner:      t.Owner.String(),
		Token:      t.Token.String(),
		ConcertID:  t.ConcertID,
		TicketType: t.TicketType,
		SeatNumber: t.SeatNumber,
		Used:       t.Used,
		IssuedAt:   t.IssuedAt,
		RedeemedAt: t.RedeemedAt,
	}
}

func (r ticketRow) toModel() model.Ticket {
	return model.Ticket{
		ID:         r.ID,
		Owner:      model.Identity(r.Owner),
		Token:      model.Identity(r.Token),
		ConcertID:  r.ConcertID,
		TicketType: r.TicketType,
		SeatNumber: r.SeatNumber,
		Used:       r.Used,
		IssuedAt:   r.IssuedAt,
		RedeemedAt: r.RedeemedAt,
	}
}

// mapPostgresError folds unique violations, serialization failures and
// deadlocks into errors.ErrConflict.
func mapPostgresError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "40001", "40P01":
			return fmt.Errorf("%w: %v", apperrors.ErrConflict, err)
		}
	}
	return err
}

var _ Store = (*Postgres)(nil)
