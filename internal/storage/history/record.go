package history

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/levyledger/levyd/internal/events"
)

// RecordSettlement appends one applied settlement. Rejections carry no
// sequence number and are not part of the durable audit trail.
func (s *Store) RecordSettlement(ctx context.Context, ev events.Settlement) error {
	if s.db == nil {
		return ErrClosed
	}
	if ev.Seq == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO settlements (seq, id, ts, invoker, sender, receiver, category, taxed, amount, tax, net, result)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (seq) DO NOTHING`),
		int64(ev.Seq),
		uuid.NewString(),
		ev.Time.UnixNano(),
		ev.Invoker.String(),
		ev.Sender.String(),
		ev.Receiver.String(),
		ev.Category,
		ev.Taxed,
		int64(ev.Amount.Uint64()),
		int64(ev.Tax.Uint64()),
		int64(ev.Net.Uint64()),
		ev.Result,
	)
	if err != nil {
		return err
	}
	s.recent.Add(ev.Seq, ev)
	return nil
}

// RecordDistribution appends one finished distribution cycle with its
// payout rows in a single database transaction.
func (s *Store) RecordDistribution(ctx context.Context, ev events.Distribution) error {
	if s.db == nil {
		return ErrClosed
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.rebind(
		`INSERT INTO distributions (id, ts, category, distributed, converted_in, secondary_out, result)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`),
		ev.ID,
		ev.Time.UnixNano(),
		ev.Category,
		int64(ev.Distributed.Uint64()),
		int64(ev.ConvertedIn.Uint64()),
		int64(ev.SecondaryOut.Uint64()),
		ev.Result,
	)
	if err != nil {
		return err
	}
	for i, p := range ev.Payouts {
		_, err = tx.ExecContext(ctx, s.rebind(
			`INSERT INTO distribution_payouts (distribution_id, entry_idx, payee, asset, share, secondary)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (distribution_id, entry_idx) DO NOTHING`),
			ev.ID,
			i,
			p.Payee.String(),
			string(p.Asset),
			int64(p.Share.Uint64()),
			p.Secondary,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Watch subscribes to the bus and appends every settlement and distribution
// until the subscription is closed. Write failures are logged and dropped;
// the audit trail must never stall the ledger.
func (s *Store) Watch(bus *events.Bus, log *zap.Logger) func() {
	sub := bus.Subscribe(events.DefaultBuffer, events.StreamSettlements, events.StreamDistributions)
	go func() {
		for ev := range sub.C() {
			var err error
			switch e := ev.(type) {
			case events.Settlement:
				err = s.RecordSettlement(context.Background(), e)
			case events.Distribution:
				err = s.RecordDistribution(context.Background(), e)
			}
			if err != nil {
				log.Error("history append failed", zap.Error(err))
			}
		}
	}()
	return sub.Close
}
