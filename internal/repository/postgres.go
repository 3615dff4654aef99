// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"

	"github.com/Six9one/twinbite-order-sub002/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserExists возвращается при попытке создать сотрудника с уже существующим логином.
var (
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если сотрудник не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrMenuItemNotFound возвращается, если позиция меню не найдена.
	ErrMenuItemNotFound = errors.New("menu item not found")
	// ErrZoneNotFound возвращается, если зона доставки не найдена.
	ErrZoneNotFound = errors.New("delivery zone not found")
	// ErrOrderNotFound возвращается, если заказ не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrLoyaltyNotFound возвращается, если карта фидельности не найдена.
	ErrLoyaltyNotFound = errors.New("loyalty account not found")
	// ErrNoRewardAvailable возвращается при попытке списать недоступную бесплатную позицию.
	ErrNoRewardAvailable = errors.New("no free item available")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет операцию при временных ошибках: сериализационных
// конфликтах, дедлоках и обрывах соединения.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(1*time.Second))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				return retry.RetryableError(err)
			}
			return err
		}

		if isConnectionError(err) {
			return retry.RetryableError(err)
		}

		return err
	})
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateStaffUser создаёт нового сотрудника.
func (r *PostgresRepository) CreateStaffUser(ctx context.Context, login string, passwordHash []byte) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO staff_users (login, password_hash) VALUES ($1, $2) RETURNING id`,
		login, passwordHash,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%w: %s", ErrUserExists, login)
		}
		return 0, fmt.Errorf("create staff user: %w", err)
	}
	return id, nil
}

// GetStaffUserByLogin возвращает сотрудника по логину.
func (r *PostgresRepository) GetStaffUserByLogin(ctx context.Context, login string) (*model.StaffUser, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, login, password_hash, created_at FROM staff_users WHERE login = $1`,
		login,
	)

	var u model.StaffUser
	err := row.Scan(&u.ID, &u.Login, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get staff user: %w", err)
	}

	return &u, nil
}

// ListMenuItems возвращает позиции меню, при activeOnly — только доступные для заказа.
func (r *PostgresRepository) ListMenuItems(ctx context.Context, activeOnly bool) ([]model.MenuItem, error) {
	query := `SELECT id, name, description, category, price_cents, image_url, active, created_at
		 FROM menu_items`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY category, name`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select menu items: %w", err)
	}
	defer rows.Close()

	var items []model.MenuItem
	for rows.Next() {
		var m model.MenuItem
		if err := rows.Scan(&m.ID, &m.Name, &m.Description, &m.Category, &m.PriceCents, &m.ImageURL, &m.Active, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan menu item: %w", err)
		}
		m.Price = float64(m.PriceCents) / 100
		items = append(items, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

// CreateMenuItem добавляет позицию меню и возвращает её идентификатор.
func (r *PostgresRepository) CreateMenuItem(ctx context.Context, m model.MenuItem) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO menu_items (name, description, category, price_cents, image_url, active)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		m.Name, m.Description, m.Category, m.PriceCents, m.ImageURL, m.Active,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert menu item: %w", err)
	}
	return id, nil
}

// UpdateMenuItem обновляет позицию меню.
func (r *PostgresRepository) UpdateMenuItem(ctx context.Context, m model.MenuItem) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE menu_items
		 SET name = $2, description = $3, category = $4, price_cents = $5, image_url = $6, active = $7
		 WHERE id = $1`,
		m.ID, m.Name, m.Description, m.Category, m.PriceCents, m.ImageURL, m.Active,
	)
	if err != nil {
		return fmt.Errorf("update menu item: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrMenuItemNotFound
	}
	return nil
}

// DeleteMenuItem удаляет позицию меню.
func (r *PostgresRepository) DeleteMenuItem(ctx context.Context, id int64) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM menu_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete menu item: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrMenuItemNotFound
	}
	return nil
}

// ListDeliveryZones возвращает все зоны доставки.
func (r *PostgresRepository) ListDeliveryZones(ctx context.Context) ([]model.DeliveryZone, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, min_order_cents, delivery_fee_cents, estimated_time
		 FROM delivery_zones
		 ORDER BY min_order_cents`,
	)
	if err != nil {
		return nil, fmt.Errorf("select delivery zones: %w", err)
	}
	defer rows.Close()

	var zones []model.DeliveryZone
	for rows.Next() {
		var z model.DeliveryZone
		if err := rows.Scan(&z.ID, &z.Name, &z.MinOrderCents, &z.DeliveryFeeCents, &z.EstimatedTime); err != nil {
			return nil, fmt.Errorf("scan delivery zone: %w", err)
		}
		z.MinOrder = float64(z.MinOrderCents) / 100
		z.DeliveryFee = float64(z.DeliveryFeeCents) / 100
		zones = append(zones, z)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return zones, nil
}

// GetDeliveryZone возвращает зону доставки по идентификатору.
func (r *PostgresRepository) GetDeliveryZone(ctx context.Context, id string) (*model.DeliveryZone, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, min_order_cents, delivery_fee_cents, estimated_time
		 FROM delivery_zones WHERE id = $1`,
		id,
	)

	var z model.DeliveryZone
	if err := row.Scan(&z.ID, &z.Name, &z.MinOrderCents, &z.DeliveryFeeCents, &z.EstimatedTime); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrZoneNotFound
		}
		return nil, fmt.Errorf("get delivery zone: %w", err)
	}

	z.MinOrder = float64(z.MinOrderCents) / 100
	z.DeliveryFee = float64(z.DeliveryFeeCents) / 100
	return &z, nil
}

// CreateOrder сохраняет заказ и в той же транзакции начисляет штампы карты
// фидельности. Вставка идемпотентна по номеру заказа: повторный вызов с тем
// же номером не создаёт дубликат и не начисляет штампы второй раз.
// Начисление выполняется одним атомарным UPDATE, без чтения счётчика.
func (r *PostgresRepository) CreateOrder(ctx context.Context, order *model.Order) (bool, error) {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return false, fmt.Errorf("marshal order items: %w", err)
	}

	var inserted bool
	err = r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		cmdTag, err := tx.Exec(ctx,
			`INSERT INTO orders (number, order_type, status, customer_name, customer_phone,
			                     customer_address, customer_notes, payment_method, zone_id, items,
			                     subtotal_cents, tva_cents, delivery_fee_cents, total_cents,
			                     promo_description, free_pizzas, stamps_earned)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
			 ON CONFLICT (number) DO NOTHING`,
			order.Number, string(order.Type), string(order.Status), order.CustomerName, order.CustomerPhone,
			order.CustomerAddress, order.CustomerNotes, order.PaymentMethod, nullIfEmpty(order.ZoneID), itemsJSON,
			order.SubtotalCents, order.TVACents, order.DeliveryFeeCents, order.TotalCents,
			order.PromoDescription, order.FreePizzas, order.StampsEarned,
		)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		inserted = cmdTag.RowsAffected() == 1

		if inserted && order.CustomerPhone != "" {
			_, err = tx.Exec(ctx,
				`INSERT INTO loyalty_accounts (customer_phone, customer_name, stamp_count, total_orders, last_order_at)
				 VALUES ($1, $2, $3, 1, now())
				 ON CONFLICT (customer_phone) DO UPDATE
				 SET customer_name = EXCLUDED.customer_name,
				     stamp_count   = loyalty_accounts.stamp_count + EXCLUDED.stamp_count,
				     total_orders  = loyalty_accounts.total_orders + 1,
				     last_order_at = now()`,
				order.CustomerPhone, order.CustomerName, order.StampsEarned,
			)
			if err != nil {
				return fmt.Errorf("increment loyalty: %w", err)
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	return inserted, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// GetOrderByNumber возвращает заказ по номеру.
func (r *PostgresRepository) GetOrderByNumber(ctx context.Context, number string) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT number, order_type, status, customer_name, customer_phone,
		        COALESCE(customer_address, ''), COALESCE(customer_notes, ''), payment_method,
		        COALESCE(zone_id, ''), items, subtotal_cents, tva_cents, delivery_fee_cents,
		        total_cents, COALESCE(promo_description, ''), free_pizzas, stamps_earned, created_at
		 FROM orders WHERE number = $1`,
		number,
	)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	return o, nil
}

// ListOrders возвращает последние заказы, при непустом статусе — только с этим статусом.
func (r *PostgresRepository) ListOrders(ctx context.Context, status model.OrderStatus, limit int) ([]model.Order, error) {
	query := `SELECT number, order_type, status, customer_name, customer_phone,
	                 COALESCE(customer_address, ''), COALESCE(customer_notes, ''), payment_method,
	                 COALESCE(zone_id, ''), items, subtotal_cents, tva_cents, delivery_fee_cents,
	                 total_cents, COALESCE(promo_description, ''), free_pizzas, stamps_earned, created_at
	          FROM orders`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*model.Order, error) {
	var (
		o         model.Order
		orderType string
		status    string
		itemsJSON []byte
	)

	err := row.Scan(&o.Number, &orderType, &status, &o.CustomerName, &o.CustomerPhone,
		&o.CustomerAddress, &o.CustomerNotes, &o.PaymentMethod,
		&o.ZoneID, &itemsJSON, &o.SubtotalCents, &o.TVACents, &o.DeliveryFeeCents,
		&o.TotalCents, &o.PromoDescription, &o.FreePizzas, &o.StampsEarned, &o.CreatedAt)
	if err != nil {
		return nil, err
	}

	o.Type = model.OrderType(orderType)
	o.Status = model.OrderStatus(status)

	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}

	return &o, nil
}

// UpdateOrderStatus изменяет статус заказа.
func (r *PostgresRepository) UpdateOrderStatus(ctx context.Context, number string, status model.OrderStatus) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $2 WHERE number = $1`,
		number, string(status),
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// GetLoyaltyAccount возвращает карту фидельности по номеру телефона.
func (r *PostgresRepository) GetLoyaltyAccount(ctx context.Context, phone string) (*model.LoyaltyAccount, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT customer_phone, COALESCE(customer_name, ''), stamp_count, total_orders,
		        free_items_redeemed, last_order_at
		 FROM loyalty_accounts WHERE customer_phone = $1`,
		phone,
	)

	var acc model.LoyaltyAccount
	err := row.Scan(&acc.CustomerPhone, &acc.CustomerName, &acc.StampCount, &acc.TotalOrders,
		&acc.FreeItemsRedeemed, &acc.LastOrderAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLoyaltyNotFound
		}
		return nil, fmt.Errorf("get loyalty account: %w", err)
	}

	return &acc, nil
}

// RedeemFreeItem списывает одну заработанную бесплатную позицию. Проверка
// доступности и инкремент выполняются одним UPDATE: накопительный счётчик
// штампов при этом не уменьшается, история остаётся полной.
func (r *PostgresRepository) RedeemFreeItem(ctx context.Context, phone string, stampsPerFreeItem int) error {
	var cmdTag pgconn.CommandTag
	err := r.withRetry(ctx, func() error {
		var err error
		cmdTag, err = r.pool.Exec(ctx,
			`UPDATE loyalty_accounts
			 SET free_items_redeemed = free_items_redeemed + 1
			 WHERE customer_phone = $1 AND free_items_redeemed < stamp_count / $2`,
			phone, stampsPerFreeItem,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("redeem free item: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNoRewardAvailable
	}
	return nil
}

// OrderForNotification описывает заказ, ожидающий отправки уведомления.
type OrderForNotification struct {
	Number        string
	CustomerName  string
	CustomerPhone string
	Type          model.OrderType
	TotalCents    int64
}

// GetOrdersForNotification возвращает заказы, по которым ещё не отправлено уведомление.
func (r *PostgresRepository) GetOrdersForNotification(ctx context.Context, limit int) ([]OrderForNotification, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT number, customer_name, customer_phone, order_type, total_cents
		 FROM orders
		 WHERE NOT notified
		 ORDER BY created_at
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders for notification: %w", err)
	}
	defer rows.Close()

	var res []OrderForNotification
	for rows.Next() {
		var (
			n         OrderForNotification
			orderType string
		)
		if err := rows.Scan(&n.Number, &n.CustomerName, &n.CustomerPhone, &orderType, &n.TotalCents); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		n.Type = model.OrderType(orderType)
		res = append(res, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// MarkOrderNotified отмечает заказ как уведомлённый.
func (r *PostgresRepository) MarkOrderNotified(ctx context.Context, number string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE orders SET notified = true WHERE number = $1`,
		number,
	)
	if err != nil {
		return fmt.Errorf("mark order notified: %w", err)
	}
	return nil
}
