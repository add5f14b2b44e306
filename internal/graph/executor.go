package graph

// DefaultTaskQueue is the executor queue used when none is configured.
const DefaultTaskQueue = "fourkites-workflow-queue"

// ExecutorWorkflow is the executor's submission format. Edge labels do not
// survive the flattening into Next.
type ExecutorWorkflow struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Config ExecutorConfig `json:"config"`
	Nodes  []ExecutorNode `json:"nodes"`
}

// ExecutorConfig carries run settings.
type ExecutorConfig struct {
	TaskQueue string `json:"task_queue"`
}

// ExecutorNode is one node with its successor ids.
type ExecutorNode struct {
	ID       string            `json:"id"`
	Type     string            `json:"type"`
	Activity string            `json:"activity"`
	Params   map[string]string `json:"params"`
	Next     []string          `json:"next"`
}

// ToExecutor flattens g into the executor format.
func ToExecutor(g *Graph, id, name, taskQueue string) ExecutorWorkflow {
	if taskQueue == "" {
		taskQueue = DefaultTaskQueue
	}
	next := make(map[string][]string, len(g.Nodes))
	for _, e := range g.Edges {
		next[e.Source] = append(next[e.Source], e.Target)
	}
	w := ExecutorWorkflow{
		ID:     id,
		Name:   name,
		Config: ExecutorConfig{TaskQueue: taskQueue},
		Nodes:  make([]ExecutorNode, 0, len(g.Nodes)),
	}
	for _, n := range g.Nodes {
		params := n.Params
		if params == nil {
			params = map[string]string{}
		}
		targets := next[n.ID]
		if targets == nil {
			targets = []string{}
		}
		w.Nodes = append(w.Nodes, ExecutorNode{
			ID:       n.ID,
			Type:     n.Kind,
			Activity: n.ActivityID,
			Params:   params,
			Next:     targets,
		})
	}
	return w
}
