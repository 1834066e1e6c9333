package db

import (
	"context"
	"fmt"
)

// Usage is the database's own view of how much space it occupies.
type Usage struct {
	UsedBytes int64
	// QuotaBytes is zero when no quota is configured.
	QuotaBytes int64
}

// Usage reports allocated pages and, when a quota is set, the page cap.
func (s *Store) Usage(ctx context.Context) (Usage, error) {
	conn, err := s.db(ctx)
	if err != nil {
		return Usage{}, err
	}
	var pageSize, pageCount, maxPages int64
	if err := conn.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return Usage{}, fmt.Errorf("page size: %w", err)
	}
	if err := conn.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
		return Usage{}, fmt.Errorf("page count: %w", err)
	}
	u := Usage{UsedBytes: pageSize * pageCount}
	if s.opts.QuotaBytes > 0 {
		if err := conn.QueryRowContext(ctx, "PRAGMA max_page_count").Scan(&maxPages); err != nil {
			return Usage{}, fmt.Errorf("max page count: %w", err)
		}
		u.QuotaBytes = pageSize * maxPages
	}
	return u, nil
}
