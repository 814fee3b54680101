package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_single_hired_bid",
			SQL: `SELECT gig_id, COUNT(*) FROM bids
                  WHERE status = 'hired'
                  GROUP BY gig_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O2_assigned_gig_has_winner",
			SQL: `SELECT g.id FROM gigs g
                  WHERE g.status = 'assigned'
                    AND (g.hired_freelancer_id IS NULL
                         OR NOT EXISTS (SELECT 1 FROM bids b WHERE b.gig_id = g.id AND b.status = 'hired'))`,
		},
		{
			Name: "O3_open_gig_has_no_winner",
			SQL: `SELECT g.id FROM gigs g
                  JOIN bids b ON b.gig_id = g.id
                  WHERE g.status = 'open' AND b.status <> 'pending'`,
		},
		{
			Name: "O4_no_pending_after_assign",
			SQL: `SELECT b.id FROM bids b
                  JOIN gigs g ON g.id = b.gig_id
                  WHERE g.status = 'assigned' AND b.status = 'pending'`,
		},
		{
			Name: "O5_one_bid_per_freelancer",
			SQL: `SELECT gig_id, freelancer_id, COUNT(*) FROM bids
                  GROUP BY gig_id, freelancer_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O6_winner_identity_consistent",
			SQL: `SELECT g.id FROM gigs g
                  JOIN bids b ON b.gig_id = g.id AND b.status = 'hired'
                  WHERE g.hired_freelancer_id IS DISTINCT FROM b.freelancer_id`,
		},
		{
			Name: "O7_no_orphan_bids",
			SQL: `SELECT b.id FROM bids b
                  WHERE NOT EXISTS (SELECT 1 FROM gigs g WHERE g.id = b.gig_id)`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and a sample
// row) or an empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		if rows.Next() {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
