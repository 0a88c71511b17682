package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/taskboards/taskboards/internal/types"
)

// Tasks fetches the full task collection. Lane names are normalized.
func (c *Client) Tasks(ctx context.Context) ([]types.Task, error) {
	var tasks []types.Task
	if err := c.Get(ctx, "/tasks", &tasks); err != nil {
		return nil, err
	}
	for i := range tasks {
		tasks[i].Normalize()
	}
	return tasks, nil
}

// UpdateTask writes a single task back to the backend.
func (c *Client) UpdateTask(ctx context.Context, task types.Task) error {
	if task.ID == "" {
		return fmt.Errorf("failed to update task: id is required")
	}
	return c.Put(ctx, "/api/tasks/"+url.PathEscape(task.ID), task, nil)
}
