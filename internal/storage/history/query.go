package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/levyledger/levyd/internal/core/amount"
	"github.com/levyledger/levyd/internal/events"
	"github.com/levyledger/levyd/internal/types"
)

const settlementColumns = `seq, ts, invoker, sender, receiver, category, taxed, amount, tax, net, result`

// Settlement returns the settlement with the given sequence number,
// served from the recent cache when possible.
func (s *Store) Settlement(ctx context.Context, seq uint64) (events.Settlement, error) {
	if ev, ok := s.recent.Get(seq); ok {
		return ev, nil
	}
	if s.db == nil {
		return events.Settlement{}, ErrClosed
	}
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+settlementColumns+` FROM settlements WHERE seq = ?`), int64(seq))
	ev, err := scanSettlement(row)
	if err != nil {
		return events.Settlement{}, err
	}
	s.recent.Add(ev.Seq, ev)
	return ev, nil
}

// Recent returns the newest settlements, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]events.Settlement, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT `+settlementColumns+` FROM settlements ORDER BY seq DESC LIMIT ?`), clampLimit(limit))
	if err != nil {
		return nil, err
	}
	return collectSettlements(rows)
}

// AccountSettlements returns the newest settlements the account took part
// in, as sender or receiver.
func (s *Store) AccountSettlements(ctx context.Context, account types.AccountID, limit int) ([]events.Settlement, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	hex := account.String()
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT `+settlementColumns+` FROM settlements
		 WHERE sender = ? OR receiver = ?
		 ORDER BY seq DESC LIMIT ?`), hex, hex, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	return collectSettlements(rows)
}

// Distributions returns the newest distribution cycles, most recent first.
// An empty category matches all categories. Payout rows are not attached;
// use Distribution for a single full record.
func (s *Store) Distributions(ctx context.Context, category string, limit int) ([]events.Distribution, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	query := `SELECT id, ts, category, distributed, converted_in, secondary_out, result
		 FROM distributions`
	args := []interface{}{}
	if category != "" {
		query += ` WHERE category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY ts DESC LIMIT ?`
	args = append(args, clampLimit(limit))

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []events.Distribution
	for rows.Next() {
		ev, err := scanDistribution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Distribution returns one cycle with its payout rows.
func (s *Store) Distribution(ctx context.Context, id string) (events.Distribution, error) {
	if s.db == nil {
		return events.Distribution{}, ErrClosed
	}
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, ts, category, distributed, converted_in, secondary_out, result
		 FROM distributions WHERE id = ?`), id)
	ev, err := scanDistribution(row)
	if err != nil {
		return events.Distribution{}, err
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT payee, asset, share, secondary FROM distribution_payouts
		 WHERE distribution_id = ? ORDER BY entry_idx`), id)
	if err != nil {
		return events.Distribution{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			payeeHex  string
			asset     string
			share     int64
			secondary bool
		)
		if err := rows.Scan(&payeeHex, &asset, &share, &secondary); err != nil {
			return events.Distribution{}, err
		}
		payee, err := types.AccountIDFromHex(payeeHex)
		if err != nil {
			return events.Distribution{}, fmt.Errorf("history: corrupt payee: %w", err)
		}
		ev.Payouts = append(ev.Payouts, events.Payout{
			Payee:     payee,
			Asset:     types.Asset(asset),
			Share:     amount.New(uint64(share)),
			Secondary: secondary,
		})
	}
	return ev, rows.Err()
}

// Counts reports the number of recorded settlements and distributions.
func (s *Store) Counts(ctx context.Context) (settlements, distributions int64, err error) {
	if s.db == nil {
		return 0, 0, ErrClosed
	}
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM settlements`).Scan(&settlements); err != nil {
		return 0, 0, err
	}
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM distributions`).Scan(&distributions); err != nil {
		return 0, 0, err
	}
	return settlements, distributions, nil
}

func clampLimit(limit int) int {
	const max = 1000
	if limit <= 0 || limit > max {
		return max
	}
	return limit
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSettlement(row rowScanner) (events.Settlement, error) {
	var (
		ev                             events.Settlement
		seq, ts, amt, tax, net         int64
		invokerHex, senderHex, recvHex string
	)
	err := row.Scan(&seq, &ts, &invokerHex, &senderHex, &recvHex,
		&ev.Category, &ev.Taxed, &amt, &tax, &net, &ev.Result)
	if err == sql.ErrNoRows {
		return ev, ErrNotFound
	}
	if err != nil {
		return ev, err
	}
	ev.Seq = uint64(seq)
	ev.Time = time.Unix(0, ts)
	ev.Amount = amount.New(uint64(amt))
	ev.Tax = amount.New(uint64(tax))
	ev.Net = amount.New(uint64(net))
	if ev.Invoker, err = types.AccountIDFromHex(invokerHex); err != nil {
		return ev, fmt.Errorf("history: corrupt invoker: %w", err)
	}
	if ev.Sender, err = types.AccountIDFromHex(senderHex); err != nil {
		return ev, fmt.Errorf("history: corrupt sender: %w", err)
	}
	if ev.Receiver, err = types.AccountIDFromHex(recvHex); err != nil {
		return ev, fmt.Errorf("history: corrupt receiver: %w", err)
	}
	return ev, nil
}

func scanDistribution(row rowScanner) (events.Distribution, error) {
	var (
		ev                events.Distribution
		ts, dist, in, out int64
	)
	err := row.Scan(&ev.ID, &ts, &ev.Category, &dist, &in, &out, &ev.Result)
	if err == sql.ErrNoRows {
		return ev, ErrNotFound
	}
	if err != nil {
		return ev, err
	}
	ev.Time = time.Unix(0, ts)
	ev.Distributed = amount.New(uint64(dist))
	ev.ConvertedIn = amount.New(uint64(in))
	ev.SecondaryOut = amount.New(uint64(out))
	return ev, nil
}

func collectSettlements(rows *sql.Rows) ([]events.Settlement, error) {
	defer rows.Close()
	var out []events.Settlement
	for rows.Next() {
		ev, err := scanSettlement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
