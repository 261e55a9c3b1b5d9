package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/codescope-dev/codescope/pkg/toposort"
)

// dagExecutor runs a set of named functions honoring a dependency graph:
// a node only starts once every node with an edge into it has finished.
// Nodes with no unmet dependency run concurrently, one goroutine each.
type dagExecutor struct {
	graph *toposort.Graph
	fns   map[string]func(context.Context)
}

func newDAGExecutor() *dagExecutor {
	return &dagExecutor{
		graph: toposort.NewGraph(),
		fns:   make(map[string]func(context.Context)),
	}
}

// addNode registers a node and the work it runs. fn must already handle
// its own error reporting - a dagExecutor node never fails the run.
func (d *dagExecutor) addNode(name string, fn func(context.Context)) {
	d.graph.AddNode(name)
	d.fns[name] = fn
}

// addEdge records that to depends on from completing first.
func (d *dagExecutor) addEdge(from, to string) {
	d.graph.AddEdge(from, to)
}

// run executes every registered node to completion, respecting the
// dependency edges recorded via addEdge. It returns an error only if the
// graph built by the caller is not a DAG, which would be a programming
// error in this package rather than a runtime condition.
func (d *dagExecutor) run(ctx context.Context) error {
	order, ok := d.graph.Toposort()
	if !ok {
		return fmt.Errorf("pipeline: detector dependency graph has a cycle")
	}

	done := make(map[string]chan struct{}, len(order))
	for _, name := range order {
		done[name] = make(chan struct{})
	}

	var wg sync.WaitGroup

	for _, name := range order {
		name := name
		parents := d.graph.FindParents(name)

		wg.Go(func() {
			defer close(done[name])

			for _, parent := range parents {
				if ch, ok := done[parent]; ok {
					<-ch
				}
			}

			if fn := d.fns[name]; fn != nil {
				fn(ctx)
			}
		})
	}

	wg.Wait()

	return nil
}
