package influx

import (
	"fmt"

	"github.com/nerrad567/flowline-core/internal/schema"
)

// reconcileRetentionPolicies makes the server's retention policies
// match the catalog. Missing policies are created, policies whose
// duration, shard group duration, replication, or default flag differ
// are altered in place. Policies on the server the catalog does not
// know about are left alone.
//
// Called with c.mu held, as part of Connect.
func (c *Client) reconcileRetentionPolicies() error {
	desired := c.database.RetentionPolicies()

	defaultSeen := false
	for _, rp := range desired {
		if !rp.Default() {
			continue
		}
		if defaultSeen {
			return schema.ErrDuplicateDefaultPolicy
		}
		defaultSeen = true
	}

	existing, err := c.driver.RetentionPolicies(c.database.Name())
	if err != nil {
		return fmt.Errorf("listing retention policies: %w", err)
	}
	byName := make(map[string]ServerRetentionPolicy, len(existing))
	for _, rp := range existing {
		byName[rp.Name] = rp
	}

	var addList, alterList []*schema.RetentionPolicy
	for _, rp := range desired {
		server, ok := byName[rp.Name()]
		switch {
		case !ok:
			addList = append(addList, rp)
		case !retentionPolicyMatches(rp, server):
			alterList = append(alterList, rp)
		}
	}

	c.log.Debug("retention policy reconciliation",
		"declared", len(desired), "create", len(addList), "alter", len(alterList))

	for _, rp := range addList {
		if err := c.driver.CreateRetentionPolicy(rp); err != nil {
			return fmt.Errorf("creating retention policy %q: %w", rp.Name(), err)
		}
		c.log.Info("created retention policy", "policy", rp.Name())
	}
	for _, rp := range alterList {
		if err := c.driver.AlterRetentionPolicy(rp); err != nil {
			return fmt.Errorf("altering retention policy %q: %w", rp.Name(), err)
		}
		c.log.Info("altered retention policy", "policy", rp.Name())
	}
	return nil
}

// retentionPolicyMatches compares a catalog policy with the server's as
// durations, not strings, so "2160h0m0s" and "90d" never diverge on
// formatting alone.
func retentionPolicyMatches(rp *schema.RetentionPolicy, server ServerRetentionPolicy) bool {
	return rp.Duration() == server.Duration &&
		rp.ShardGroupDuration() == server.ShardGroupDuration &&
		rp.Replication() == server.Replication &&
		rp.Default() == server.Default
}

// reconcileContinuousQueries makes the server's continuous queries
// match the catalog. Comparison is syntactic on the full CREATE
// statement; the server offers no ALTER, so a changed query is dropped
// and re-added. Server queries the catalog does not declare are left
// alone.
//
// Called with c.mu held, as part of Connect.
func (c *Client) reconcileContinuousQueries() error {
	existing, err := c.driver.ContinuousQueries(c.database.Name())
	if err != nil {
		return fmt.Errorf("listing continuous queries: %w", err)
	}

	var addList, dropList []*schema.ContinuousQuery
	for _, cq := range c.database.ContinuousQueries() {
		serverQuery, ok := existing[cq.Name()]
		switch {
		case !ok:
			addList = append(addList, cq)
		case serverQuery != cq.Statement():
			dropList = append(dropList, cq)
		}
	}

	c.log.Debug("continuous query reconciliation",
		"declared", len(c.database.ContinuousQueries()), "create", len(addList), "recreate", len(dropList))

	for _, cq := range dropList {
		if err := c.driver.DropContinuousQuery(cq.Name(), c.database.Name()); err != nil {
			return fmt.Errorf("dropping continuous query %q: %w", cq.Name(), err)
		}
	}
	addList = append(addList, dropList...)
	for _, cq := range addList {
		if err := c.driver.CreateContinuousQuery(cq); err != nil {
			return fmt.Errorf("creating continuous query %q: %w", cq.Name(), err)
		}
		c.log.Info("created continuous query", "query", cq.Name())
	}
	return nil
}
