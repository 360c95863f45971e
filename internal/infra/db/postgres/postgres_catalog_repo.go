package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/smitsergei/tma-subscription-sub002/internal/domain/model"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/ports/repository"
)

var (
	_ repository.ChannelRepository = (*channelRepo)(nil)
	_ repository.ProductRepository = (*productRepo)(nil)
)

type channelRepo struct{ pool *pgxpool.Pool }

func NewChannelRepo(pool *pgxpool.Pool) *channelRepo {
	return &channelRepo{pool: pool}
}

func (r *channelRepo) Save(ctx context.Context, tx repository.Tx, c *model.Channel) error {
	const q = `
INSERT INTO channels (id, name, username, description, created_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (id) DO UPDATE SET name=$2, username=$3, description=$4;`
	_, err := execSQL(ctx, r.pool, tx, q, c.ID.Int64(), c.Name, c.Username, c.Description, c.CreatedAt)
	return mapError(err, "save channel")
}

const channelColumns = `id, name, username, description, created_at`

func scanChannel(row rowScanner) (*model.Channel, error) {
	var (
		c  model.Channel
		id int64
	)
	if err := row.Scan(&id, &c.Name, &c.Username, &c.Description, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.ID = model.TelegramID(id)
	return &c, nil
}

func (r *channelRepo) FindByID(ctx context.Context, tx repository.Tx, id model.TelegramID) (*model.Channel, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+channelColumns+` FROM channels WHERE id=$1;`, id.Int64())
	if err != nil {
		return nil, err
	}
	c, err := scanChannel(row)
	if err != nil {
		return nil, mapScanError(err, "find channel")
	}
	return c, nil
}

func (r *channelRepo) List(ctx context.Context, tx repository.Tx) ([]*model.Channel, error) {
	rows, err := queryRows(ctx, r.pool, tx, `SELECT `+channelColumns+` FROM channels ORDER BY name;`)
	if err != nil {
		return nil, mapError(err, "list channels")
	}
	defer rows.Close()

	var out []*model.Channel
	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, mapScanError(err, "list channels")
		}
		out = append(out, c)
	}
	return out, mapError(rows.Err(), "list channels")
}

type productRepo struct{ pool *pgxpool.Pool }

func NewProductRepo(pool *pgxpool.Pool) *productRepo {
	return &productRepo{pool: pool}
}

// Money is stored as NUMERIC and crosses the driver as text.
const productColumns = `id, channel_id, name, description, price::text, discount_price::text, currency,
  period_days, is_trial, is_active, allow_demo, demo_days, created_at, updated_at`

func scanProduct(row rowScanner) (*model.Product, error) {
	var (
		p         model.Product
		channelID int64
		price     string
		discount  *string
	)
	if err := row.Scan(&p.ID, &channelID, &p.Name, &p.Description, &price, &discount, &p.Currency,
		&p.PeriodDays, &p.IsTrial, &p.IsActive, &p.AllowDemo, &p.DemoDays, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.ChannelID = model.TelegramID(channelID)
	var err error
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return nil, err
	}
	if discount != nil {
		d, err := decimal.NewFromString(*discount)
		if err != nil {
			return nil, err
		}
		p.DiscountPrice = &d
	}
	return &p, nil
}

func (r *productRepo) Save(ctx context.Context, tx repository.Tx, p *model.Product) error {
	const q = `
INSERT INTO products (
  id, channel_id, name, description, price, discount_price, currency,
  period_days, is_trial, is_active, allow_demo, demo_days, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5::numeric,$6::numeric,$7,$8,$9,$10,$11,$12,$13,$14
) ON CONFLICT (id) DO UPDATE SET
  channel_id=$2, name=$3, description=$4, price=$5::numeric, discount_price=$6::numeric, currency=$7,
  period_days=$8, is_trial=$9, is_active=$10, allow_demo=$11, demo_days=$12, updated_at=$14;`
	var discount *string
	if p.DiscountPrice != nil {
		s := p.DiscountPrice.String()
		discount = &s
	}
	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.ChannelID.Int64(), p.Name, p.Description, p.Price.String(), discount, p.Currency,
		p.PeriodDays, p.IsTrial, p.IsActive, p.AllowDemo, p.DemoDays, p.CreatedAt, p.UpdatedAt)
	return mapError(err, "save product")
}

func (r *productRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Product, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+productColumns+` FROM products WHERE id=$1;`, id)
	if err != nil {
		return nil, err
	}
	p, err := scanProduct(row)
	if err != nil {
		return nil, mapScanError(err, "find product")
	}
	return p, nil
}

func (r *productRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Product, error) {
	rows, err := queryRows(ctx, r.pool, tx, `SELECT `+productColumns+` FROM products WHERE is_active ORDER BY created_at, id;`)
	if err != nil {
		return nil, mapError(err, "list products")
	}
	defer rows.Close()

	var out []*model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, mapScanError(err, "list products")
		}
		out = append(out, p)
	}
	return out, mapError(rows.Err(), "list products")
}
