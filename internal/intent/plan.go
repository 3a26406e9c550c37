package intent

// Task names one pipeline step the orchestrator knows how to execute.
type Task string

const (
	TaskFindDocs      Task = "doc.find_docs"
	TaskQueryJournal  Task = "data.query_journal"
	TaskReconcile     Task = "match.reconcile"
	TaskPolicyScan    Task = "policy.scan"
	TaskStreamSummary Task = "summary.stream_summary"
	TaskPackage       Task = "notify.prepare_package"
)

// Step is one planned unit of work.
type Step struct {
	Seq         int    `json:"step"`
	Task        Task   `json:"task"`
	Description string `json:"description"`
}

var plans = map[Kind][]Step{
	KindGeneratePackage: {
		{Seq: 1, Task: TaskFindDocs, Description: "Collect supporting documents"},
		{Seq: 2, Task: TaskQueryJournal, Description: "Fetch ledger entries"},
		{Seq: 3, Task: TaskReconcile, Description: "Reconcile documents and journal"},
		{Seq: 4, Task: TaskPolicyScan, Description: "Scan evidence against control catalog"},
		{Seq: 5, Task: TaskStreamSummary, Description: "Draft auditor summary"},
		{Seq: 6, Task: TaskPackage, Description: "Prepare package and notifications"},
	},
	KindGetSummary: {
		{Seq: 1, Task: TaskFindDocs, Description: "Collect supporting documents"},
		{Seq: 2, Task: TaskQueryJournal, Description: "Fetch ledger entries"},
		{Seq: 3, Task: TaskReconcile, Description: "Reconcile documents and journal"},
		{Seq: 4, Task: TaskStreamSummary, Description: "Draft auditor summary"},
	},
}

// PlanTasks maps a parsed intent to its ordered step list. Unrecognized
// kinds fall back to the full package plan so a vague-but-identifiable
// request still produces an auditable artifact.
func PlanTasks(p Parsed) []Step {
	if steps, ok := plans[p.Kind]; ok {
		return steps
	}
	return plans[KindGeneratePackage]
}
