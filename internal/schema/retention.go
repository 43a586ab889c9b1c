package schema

import "time"

// RetentionPolicy describes how long data in one named bucket is kept,
// how it is replicated, and how shard groups are sized.
//
// Policies are declared on a Database and reconciled against the server
// on connect. Within one database at most one policy may be declared as
// default; Database.Validate rejects violations before any server call.
type RetentionPolicy struct {
	database    *Database
	name        string
	duration    time.Duration
	shardGroup  time.Duration
	replication int
	isDefault   bool
}

// Name returns the policy name.
func (rp *RetentionPolicy) Name() string { return rp.name }

// Database returns the owning database.
func (rp *RetentionPolicy) Database() *Database { return rp.database }

// Duration returns how long data covered by this policy is retained.
// Zero means data is kept forever.
func (rp *RetentionPolicy) Duration() time.Duration { return rp.duration }

// ShardGroupDuration returns the shard group sizing for this policy.
func (rp *RetentionPolicy) ShardGroupDuration() time.Duration { return rp.shardGroup }

// Replication returns the replication factor.
func (rp *RetentionPolicy) Replication() int { return rp.replication }

// Default reports whether this policy is the database default.
func (rp *RetentionPolicy) Default() bool { return rp.isDefault }

// String returns the policy name, for logging.
func (rp *RetentionPolicy) String() string { return rp.name }
