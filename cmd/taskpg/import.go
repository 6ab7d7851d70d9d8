package main

import (
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/youssefsiam38/taskpg/storage"
	"github.com/youssefsiam38/taskpg/types"
)

// seedFile is the YAML layout accepted by "taskpg import". Tasks refer to
// each other by key; keys are local to the file.
type seedFile struct {
	Tasks []seedTask `yaml:"tasks"`
}

type seedTask struct {
	Key         string      `yaml:"key"`
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Start       *civil.Date `yaml:"start"`
	End         *civil.Date `yaml:"end"`
	Status      string      `yaml:"status"`
	Priority    string      `yaml:"priority"`
	Progress    int         `yaml:"progress"`
	Assignee    string      `yaml:"assignee"`
	Category    string      `yaml:"category"`
	Parent      string      `yaml:"parent"`
	DependsOn   []string    `yaml:"depends_on"`
	Repeat      string      `yaml:"repeat"`
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Seed tasks from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			tasks, err := parseSeed(data)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			e, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			n, err := e.client.ImportTasks(cmd.Context(), tasks)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d tasks\n", n)
			return nil
		},
	}
}

// parseSeed decodes a seed file into tasks with fresh ids, ordered so every
// parent comes before its children.
func parseSeed(data []byte) ([]*storage.Task, error) {
	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	ids := make(map[string]string, len(file.Tasks))
	for i, st := range file.Tasks {
		key := st.Key
		if key == "" {
			key = fmt.Sprintf("#%d", i+1)
			file.Tasks[i].Key = key
		}
		if _, dup := ids[key]; dup {
			return nil, fmt.Errorf("duplicate key %q", key)
		}
		ids[key] = uuid.New().String()
	}

	resolve := func(st seedTask, ref, field string) (string, error) {
		id, ok := ids[ref]
		if !ok {
			return "", fmt.Errorf("task %q: %s refers to unknown key %q", st.Key, field, ref)
		}
		return id, nil
	}

	byKey := make(map[string]*storage.Task, len(file.Tasks))
	for _, st := range file.Tasks {
		task := &storage.Task{
			ID:          ids[st.Key],
			Name:        st.Name,
			Description: st.Description,
			StartDate:   st.Start,
			EndDate:     st.End,
			Status:      types.Status(st.Status),
			Priority:    types.Priority(st.Priority),
			Progress:    st.Progress,
			Assignee:    st.Assignee,
			Category:    st.Category,
			Recurrence:  storage.Recurrence{Rule: types.RecurrenceRule(st.Repeat)},
		}
		if st.Parent != "" {
			id, err := resolve(st, st.Parent, "parent")
			if err != nil {
				return nil, err
			}
			task.ParentID = &id
		}
		deps := make([]string, 0, len(st.DependsOn))
		for _, ref := range st.DependsOn {
			id, err := resolve(st, ref, "depends_on")
			if err != nil {
				return nil, err
			}
			deps = append(deps, id)
		}
		task.Dependencies = strings.Join(deps, ",")
		byKey[st.Key] = task
	}

	// Emit parents first. Anything left over sits on a parent cycle.
	ordered := make([]*storage.Task, 0, len(file.Tasks))
	placed := make(map[string]bool, len(file.Tasks))
	for len(ordered) < len(file.Tasks) {
		progress := false
		for _, st := range file.Tasks {
			if placed[st.Key] || (st.Parent != "" && !placed[st.Parent]) {
				continue
			}
			ordered = append(ordered, byKey[st.Key])
			placed[st.Key] = true
			progress = true
		}
		if !progress {
			return nil, fmt.Errorf("parent cycle among %d tasks", len(file.Tasks)-len(ordered))
		}
	}
	return ordered, nil
}
