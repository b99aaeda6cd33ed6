package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharmasatrya/airsearch/internal/timezone"
)

//go:embed schema.sql
var schema string

const flightColumns = `id, flight_number, carrier, operating_carrier, origin, destination,
	departure_time, arrival_time, cabin, fare, currency, seats_available`

// PostgresStore reads the catalog from a flights table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn and verifies the connection.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("catalog: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("catalog: ping: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Migrate creates the flights table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("catalog: migrate: %w", err)
	}
	return nil
}

// Upsert inserts or replaces flights in one batch.
func (s *PostgresStore) Upsert(ctx context.Context, flights []Flight) error {
	batch := &pgx.Batch{}
	for _, f := range flights {
		batch.Queue(`
			INSERT INTO flights (`+flightColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (id) DO UPDATE SET
				flight_number = EXCLUDED.flight_number,
				carrier = EXCLUDED.carrier,
				operating_carrier = EXCLUDED.operating_carrier,
				origin = EXCLUDED.origin,
				destination = EXCLUDED.destination,
				departure_time = EXCLUDED.departure_time,
				arrival_time = EXCLUDED.arrival_time,
				cabin = EXCLUDED.cabin,
				fare = EXCLUDED.fare,
				currency = EXCLUDED.currency,
				seats_available = EXCLUDED.seats_available`,
			f.ID, f.FlightNumber, f.Carrier, f.OperatingCarrier,
			strings.ToUpper(f.Origin), strings.ToUpper(f.Destination),
			f.DepartureTime, f.ArrivalTime, f.Cabin, f.Fare, f.Currency, f.SeatsAvailable)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("catalog: upsert: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindFlights(ctx context.Context, c Criteria) ([]Flight, error) {
	start, end, err := timezone.DayBounds(c.Date, c.Origin)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+flightColumns+`
		FROM flights
		WHERE origin = $1 AND destination = $2
		  AND ($3 = '' OR lower(cabin) = lower($3))
		  AND seats_available >= $4
		  AND departure_time >= $5 AND departure_time < $6
		ORDER BY departure_time, id`,
		strings.ToUpper(c.Origin), strings.ToUpper(c.Destination), c.Cabin, c.Seats, start, end)
	if err != nil {
		return nil, fmt.Errorf("catalog: find flights: %w", err)
	}
	flights, err := pgx.CollectRows(rows, pgx.RowToStructByName[Flight])
	if err != nil {
		return nil, fmt.Errorf("catalog: scan flights: %w", err)
	}
	return flights, nil
}

func (s *PostgresStore) GetFlight(ctx context.Context, id string) (Flight, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+flightColumns+` FROM flights WHERE id = $1`, id)
	if err != nil {
		return Flight{}, fmt.Errorf("catalog: get flight: %w", err)
	}
	f, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[Flight])
	if errors.Is(err, pgx.ErrNoRows) {
		return Flight{}, ErrFlightNotFound
	}
	if err != nil {
		return Flight{}, fmt.Errorf("catalog: get flight: %w", err)
	}
	return f, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
