package db

import (
	"fmt"
	"time"

	"eve-nerd/internal/graph"
)

const (
	bridgeKindStatic  = "static"
	bridgeKindDynamic = "dynamic"
)

// BridgeRecord is a persisted bridge. For static bridges A < B; for dynamic
// bridges A is the anchor, B is 0 and RangeLY the reach.
type BridgeRecord struct {
	ID        int64
	Kind      graph.BridgeKind
	A, B      int32
	RangeLY   float64
	CreatedAt string
}

// SaveStaticBridge stores a static bridge. The pair is unordered; saving it
// twice is a no-op.
func (d *DB) SaveStaticBridge(a, b int32) error {
	if a == b {
		return fmt.Errorf("static bridge from system %d to itself", a)
	}
	if a > b {
		a, b = b, a
	}
	_, err := d.sql.Exec(`
		INSERT INTO bridges (kind, a, b, range_ly, created_at)
		VALUES (?, ?, ?, 0, ?)
		ON CONFLICT(kind, a, b) DO NOTHING
	`, bridgeKindStatic, a, b, now())
	return err
}

// SaveDynamicBridge stores a dynamic bridge anchor. Saving an anchor again
// keeps the larger range.
func (d *DB) SaveDynamicBridge(anchor int32, rangeLY float64) error {
	if !(rangeLY > 0) {
		return fmt.Errorf("dynamic bridge range %v must be positive", rangeLY)
	}
	_, err := d.sql.Exec(`
		INSERT INTO bridges (kind, a, b, range_ly, created_at)
		VALUES (?, ?, 0, ?, ?)
		ON CONFLICT(kind, a, b)
		DO UPDATE SET range_ly = MAX(range_ly, excluded.range_ly)
	`, bridgeKindDynamic, anchor, rangeLY, now())
	return err
}

// Bridges lists the stored bridges in insertion order.
func (d *DB) Bridges() ([]BridgeRecord, error) {
	rows, err := d.sql.Query(`
		SELECT id, kind, a, b, range_ly, created_at
		  FROM bridges
		 ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BridgeRecord
	for rows.Next() {
		var r BridgeRecord
		var kind string
		if err := rows.Scan(&r.ID, &kind, &r.A, &r.B, &r.RangeLY, &r.CreatedAt); err != nil {
			return nil, err
		}
		if kind == bridgeKindDynamic {
			r.Kind = graph.DynamicBridge
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteBridge removes a stored bridge by id.
func (d *DB) DeleteBridge(id int64) error {
	res, err := d.sql.Exec("DELETE FROM bridges WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("bridge %d not found", id)
	}
	return nil
}

// ApplyBridges registers every stored bridge with u and returns how many
// were applied. Bridges whose systems are absent from u's map are skipped
// and reported through the returned error list.
func (d *DB) ApplyBridges(u *graph.Universe) (int, []error, error) {
	records, err := d.Bridges()
	if err != nil {
		return 0, nil, err
	}
	applied := 0
	var skipped []error
	for _, r := range records {
		var err error
		if r.Kind == graph.DynamicBridge {
			err = u.AddDynamicBridge(r.A, r.RangeLY)
		} else {
			err = u.AddStaticBridge(r.A, r.B)
		}
		if err != nil {
			skipped = append(skipped, fmt.Errorf("bridge %d: %w", r.ID, err))
			continue
		}
		applied++
	}
	return applied, skipped, nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
