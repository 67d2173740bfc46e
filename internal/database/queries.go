package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ Querier = (*Queries)(nil)

// Queries is the pgx-backed Querier implementation.
type Queries struct {
	db DBTX
}

// New creates a Queries instance bound to a pool or transaction.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

const getClientBySystemID = `
SELECT id, system_id, password, max_connections, routing_strategy, created_at, updated_at
FROM clients
WHERE system_id = $1
`

func (q *Queries) GetClientBySystemID(ctx context.Context, systemID string) (Client, error) {
	row := q.db.QueryRow(ctx, getClientBySystemID, systemID)
	var c Client
	err := row.Scan(&c.ID, &c.SystemID, &c.Password, &c.MaxConnections, &c.RoutingStrategy, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

const getVendorByID = `
SELECT id, system_id, password, message_price, created_at, updated_at
FROM vendors
WHERE id = $1
`

func (q *Queries) GetVendorByID(ctx context.Context, id string) (Vendor, error) {
	row := q.db.QueryRow(ctx, getVendorByID, id)
	var v Vendor
	err := row.Scan(&v.ID, &v.SystemID, &v.Password, &v.MessagePrice, &v.CreatedAt, &v.UpdatedAt)
	return v, err
}

const getActiveVendorHosts = `
SELECT id, vendor_id, host, port, priority, is_active, created_at, updated_at
FROM vendor_hosts
WHERE vendor_id = $1 AND is_active = TRUE
ORDER BY priority ASC
`

func (q *Queries) GetActiveVendorHosts(ctx context.Context, vendorID string) ([]VendorHost, error) {
	rows, err := q.db.Query(ctx, getActiveVendorHosts, vendorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hosts []VendorHost
	for rows.Next() {
		h, err := scanVendorHost(rows)
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, h)
	}
	return hosts, rows.Err()
}

const listVendorsWithHostCounts = `
SELECT v.id, v.system_id, v.message_price,
       COUNT(h.id) FILTER (WHERE h.is_active) AS active_host_count
FROM vendors v
LEFT JOIN vendor_hosts h ON h.vendor_id = v.id
GROUP BY v.id, v.system_id, v.message_price
ORDER BY v.id
`

func (q *Queries) ListVendorsWithHostCounts(ctx context.Context) ([]VendorWithHostCount, error) {
	rows, err := q.db.Query(ctx, listVendorsWithHostCounts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vendors []VendorWithHostCount
	for rows.Next() {
		var v VendorWithHostCount
		if err := rows.Scan(&v.ID, &v.SystemID, &v.MessagePrice, &v.ActiveHostCount); err != nil {
			return nil, err
		}
		vendors = append(vendors, v)
	}
	return vendors, rows.Err()
}

const createMessage = `
INSERT INTO messages (
	id, client_id, vendor_id, host_id, vendor_message_id,
	source, destination, content, status, direction,
	created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
`

func (q *Queries) CreateMessage(ctx context.Context, arg CreateMessageParams) error {
	_, err := q.db.Exec(ctx, createMessage,
		arg.ID, arg.ClientID, arg.VendorID, arg.HostID, arg.VendorMessageID,
		arg.Source, arg.Destination, arg.Content, arg.Status, arg.Direction,
	)
	return err
}

const updateMessageStatus = `
UPDATE messages
SET status = $4, updated_at = NOW()
WHERE id = $1 AND vendor_id = $2 AND host_id = $3
`

func (q *Queries) UpdateMessageStatus(ctx context.Context, arg UpdateMessageStatusParams) error {
	_, err := q.db.Exec(ctx, updateMessageStatus, arg.ID, arg.VendorID, arg.HostID, arg.Status)
	return err
}

const setVendorHostActive = `
UPDATE vendor_hosts
SET is_active = $3
WHERE id = $1 AND vendor_id = $2
`

func (q *Queries) SetVendorHostActive(ctx context.Context, arg SetVendorHostActiveParams) error {
	tag, err := q.db.Exec(ctx, setVendorHostActive, arg.ID, arg.VendorID, arg.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

const createClient = `
INSERT INTO clients (id, system_id, password, max_connections, routing_strategy, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
RETURNING id, system_id, password, max_connections, routing_strategy, created_at, updated_at
`

func (q *Queries) CreateClient(ctx context.Context, arg CreateClientParams) (Client, error) {
	row := q.db.QueryRow(ctx, createClient,
		arg.ID, arg.SystemID, arg.Password, arg.MaxConnections, arg.RoutingStrategy,
	)
	var c Client
	err := row.Scan(&c.ID, &c.SystemID, &c.Password, &c.MaxConnections, &c.RoutingStrategy, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

const getClientByID = `
SELECT id, system_id, password, max_connections, routing_strategy, created_at, updated_at
FROM clients
WHERE id = $1
`

func (q *Queries) GetClientByID(ctx context.Context, id string) (Client, error) {
	row := q.db.QueryRow(ctx, getClientByID, id)
	var c Client
	err := row.Scan(&c.ID, &c.SystemID, &c.Password, &c.MaxConnections, &c.RoutingStrategy, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

const listClients = `
SELECT id, system_id, password, max_connections, routing_strategy, created_at, updated_at
FROM clients
ORDER BY system_id
LIMIT $1 OFFSET $2
`

func (q *Queries) ListClients(ctx context.Context, arg ListClientsParams) ([]Client, error) {
	rows, err := q.db.Query(ctx, listClients, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []Client
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.ID, &c.SystemID, &c.Password, &c.MaxConnections, &c.RoutingStrategy, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

const countClients = `SELECT COUNT(*) FROM clients`

func (q *Queries) CountClients(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countClients).Scan(&n)
	return n, err
}

const deleteClient = `DELETE FROM clients WHERE id = $1`

func (q *Queries) DeleteClient(ctx context.Context, id string) error {
	tag, err := q.db.Exec(ctx, deleteClient, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

const createVendor = `
INSERT INTO vendors (id, system_id, password, message_price, created_at, updated_at)
VALUES ($1, $2, $3, $4, NOW(), NOW())
RETURNING id, system_id, password, message_price, created_at, updated_at
`

func (q *Queries) CreateVendor(ctx context.Context, arg CreateVendorParams) (Vendor, error) {
	row := q.db.QueryRow(ctx, createVendor, arg.ID, arg.SystemID, arg.Password, arg.MessagePrice)
	var v Vendor
	err := row.Scan(&v.ID, &v.SystemID, &v.Password, &v.MessagePrice, &v.CreatedAt, &v.UpdatedAt)
	return v, err
}

const listVendors = `
SELECT id, system_id, password, message_price, created_at, updated_at
FROM vendors
ORDER BY system_id
LIMIT $1 OFFSET $2
`

func (q *Queries) ListVendors(ctx context.Context, arg ListVendorsParams) ([]Vendor, error) {
	rows, err := q.db.Query(ctx, listVendors, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vendors []Vendor
	for rows.Next() {
		var v Vendor
		if err := rows.Scan(&v.ID, &v.SystemID, &v.Password, &v.MessagePrice, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		vendors = append(vendors, v)
	}
	return vendors, rows.Err()
}

const countVendors = `SELECT COUNT(*) FROM vendors`

func (q *Queries) CountVendors(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countVendors).Scan(&n)
	return n, err
}

const createVendorHost = `
INSERT INTO vendor_hosts (id, vendor_id, host, port, priority, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
RETURNING id, vendor_id, host, port, priority, is_active, created_at, updated_at
`

func (q *Queries) CreateVendorHost(ctx context.Context, arg CreateVendorHostParams) (VendorHost, error) {
	row := q.db.QueryRow(ctx, createVendorHost,
		arg.ID, arg.VendorID, arg.Host, arg.Port, arg.Priority, arg.IsActive,
	)
	return scanVendorHost(row)
}

const listVendorHosts = `
SELECT id, vendor_id, host, port, priority, is_active, created_at, updated_at
FROM vendor_hosts
WHERE vendor_id = $1
ORDER BY priority ASC, id
`

func (q *Queries) ListVendorHosts(ctx context.Context, vendorID string) ([]VendorHost, error) {
	rows, err := q.db.Query(ctx, listVendorHosts, vendorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hosts []VendorHost
	for rows.Next() {
		h, err := scanVendorHost(rows)
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, h)
	}
	return hosts, rows.Err()
}

const listMessages = `
SELECT id, client_id, vendor_id, host_id, vendor_message_id,
       source, destination, content, status, direction, created_at, updated_at
FROM messages
WHERE ($1 = '' OR client_id = $1)
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`

func (q *Queries) ListMessages(ctx context.Context, arg ListMessagesParams) ([]Message, error) {
	rows, err := q.db.Query(ctx, listMessages, arg.ClientID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(
			&m.ID, &m.ClientID, &m.VendorID, &m.HostID, &m.VendorMessageID,
			&m.Source, &m.Destination, &m.Content, &m.Status, &m.Direction,
			&m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

const countMessages = `SELECT COUNT(*) FROM messages WHERE ($1 = '' OR client_id = $1)`

func (q *Queries) CountMessages(ctx context.Context, clientID string) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countMessages, clientID).Scan(&n)
	return n, err
}

func scanVendorHost(row pgx.Row) (VendorHost, error) {
	var h VendorHost
	err := row.Scan(&h.ID, &h.VendorID, &h.Host, &h.Port, &h.Priority, &h.IsActive, &h.CreatedAt, &h.UpdatedAt)
	return h, err
}
