package store

import (
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// Table and column names shared by the repositories.
const (
	snapshotsTable   = "session_snapshots"
	levelsTable      = "learner_levels"
	llmEventsTable   = "llm_request_events"
	transitionsTable = "transition_events"
)

var (
	snapshotColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "session_id", Type: field.TypeString},
		{Name: "sequence", Type: field.TypeInt64},
		{Name: "timestamp", Type: field.TypeTime},
		{Name: "data", Type: field.TypeJSON},
	}
	snapshotsSchema = &schema.Table{
		Name:       snapshotsTable,
		Columns:    snapshotColumns,
		PrimaryKey: []*schema.Column{snapshotColumns[0]},
		Indexes: []*schema.Index{
			{Name: "snapshot_session_sequence", Unique: true, Columns: []*schema.Column{snapshotColumns[1], snapshotColumns[2]}},
		},
	}

	levelColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "learner_id", Type: field.TypeString},
		{Name: "topic", Type: field.TypeString},
		{Name: "level", Type: field.TypeString},
		{Name: "updated_at", Type: field.TypeTime},
	}
	levelsSchema = &schema.Table{
		Name:       levelsTable,
		Columns:    levelColumns,
		PrimaryKey: []*schema.Column{levelColumns[0]},
		Indexes: []*schema.Index{
			{Name: "level_learner_topic", Unique: true, Columns: []*schema.Column{levelColumns[1], levelColumns[2]}},
		},
	}

	llmEventColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "sequence", Type: field.TypeInt64, Unique: true},
		{Name: "timestamp", Type: field.TypeTime},
		{Name: "provider", Type: field.TypeString},
		{Name: "model", Type: field.TypeString},
		{Name: "purpose", Type: field.TypeString},
		{Name: "session_id", Type: field.TypeString, Nullable: true},
		{Name: "input_tokens", Type: field.TypeInt},
		{Name: "output_tokens", Type: field.TypeInt},
		{Name: "latency_ms", Type: field.TypeInt64},
		{Name: "success", Type: field.TypeBool},
		{Name: "error_message", Type: field.TypeString, Nullable: true},
		{Name: "request_body", Type: field.TypeString, Size: 2147483647, Nullable: true},
		{Name: "response_body", Type: field.TypeString, Size: 2147483647, Nullable: true},
	}
	llmEventsSchema = &schema.Table{
		Name:       llmEventsTable,
		Columns:    llmEventColumns,
		PrimaryKey: []*schema.Column{llmEventColumns[0]},
		Indexes: []*schema.Index{
			{Name: "llmevent_purpose", Columns: []*schema.Column{llmEventColumns[5]}},
		},
	}

	transitionColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "sequence", Type: field.TypeInt64, Unique: true},
		{Name: "timestamp", Type: field.TypeTime},
		{Name: "session_id", Type: field.TypeString},
		{Name: "learner_id", Type: field.TypeString},
		{Name: "topic", Type: field.TypeString},
		{Name: "op", Type: field.TypeString},
		{Name: "from_phase", Type: field.TypeString},
		{Name: "to_phase", Type: field.TypeString},
		{Name: "step_index", Type: field.TypeInt},
		{Name: "progress", Type: field.TypeFloat64},
	}
	transitionsSchema = &schema.Table{
		Name:       transitionsTable,
		Columns:    transitionColumns,
		PrimaryKey: []*schema.Column{transitionColumns[0]},
		Indexes: []*schema.Index{
			{Name: "transition_session", Columns: []*schema.Column{transitionColumns[3]}},
		},
	}

	// Tables holds every table the store migrates on open.
	Tables = []*schema.Table{
		snapshotsSchema,
		levelsSchema,
		llmEventsSchema,
		transitionsSchema,
	}
)
