package domain

type EntityKind string

const (
	KindGrid      EntityKind = "grid"
	KindPanel     EntityKind = "panel"
	KindContainer EntityKind = "container"
	KindInstance  EntityKind = "instance"
	KindField     EntityKind = "field"
)

// ValidEntityKinds is the canonical set of accepted entity kind strings.
// Fields are entities but never parents or targets of occurrences.
var ValidEntityKinds = map[string]bool{
	"grid": true, "panel": true, "container": true, "instance": true, "field": true,
}

type FieldMode string

const (
	FieldInput   FieldMode = "input"
	FieldDerived FieldMode = "derived"
)

type IterationMode string

const (
	IterPersistent IterationMode = "persistent"
	IterSpecific   IterationMode = "specific"
	IterUntilDone  IterationMode = "untilDone"
)

type TimeFilter string

const (
	FilterDaily   TimeFilter = "daily"
	FilterWeekly  TimeFilter = "weekly"
	FilterMonthly TimeFilter = "monthly"
	FilterYearly  TimeFilter = "yearly"
	FilterAll     TimeFilter = "all"
)

type Flow string

const (
	FlowIn  Flow = "in"
	FlowOut Flow = "out"
)

type FlowFilter string

const (
	FlowFilterIn  FlowFilter = "in"
	FlowFilterOut FlowFilter = "out"
	FlowFilterAny FlowFilter = "any"
)

type MetricSource string

const (
	SourceOccurrences  MetricSource = "occurrences"
	SourceTransactions MetricSource = "transactions"
)

type Aggregation string

const (
	AggSum       Aggregation = "sum"
	AggCount     Aggregation = "count"
	AggCountTrue Aggregation = "countTrue"
	AggAvg       Aggregation = "avg"
	AggLast      Aggregation = "last"
	AggFirst     Aggregation = "first"
)

type MetricScope string

const (
	ScopeGrid      MetricScope = "grid"
	ScopePanel     MetricScope = "panel"
	ScopeContainer MetricScope = "container"
)

type TxState string

const (
	TxApplied TxState = "applied"
	TxUndone  TxState = "undone"
	TxRedone  TxState = "redone"
)

type ListAction string

const (
	ListAdd     ListAction = "add"
	ListRemove  ListAction = "remove"
	ListMove    ListAction = "move"
	ListCopy    ListAction = "copy"
	ListReorder ListAction = "reorder"
	ListCreate  ListAction = "create"
	ListDelete  ListAction = "delete"
)

type EntityAction string

const (
	EntityCreate EntityAction = "create"
	EntityUpdate EntityAction = "update"
	EntityDelete EntityAction = "delete"
)
