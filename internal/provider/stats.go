package provider

import (
	"time"

	"github.com/dori/tandem/internal/model"
)

// Stats summarises a snapshot for dashboards
type Stats struct {
	Projects   int
	Tasks      int
	Pending    int
	InProgress int
	Completed  int
	Overdue    int
	PerProject []ProjectStats
}

// ProjectStats is the progress of one project
type ProjectStats struct {
	ID        string
	Name      string
	Tasks     int
	Completed int
}

// Progress is the completed fraction, 0 for a project without tasks
func (p ProjectStats) Progress() float64 {
	if p.Tasks == 0 {
		return 0
	}
	return float64(p.Completed) / float64(p.Tasks)
}

// ComputeStats counts tasks by status and per project
func ComputeStats(st State, now time.Time) Stats {
	stats := Stats{
		Projects:   len(st.Projects),
		Tasks:      len(st.Tasks),
		PerProject: make([]ProjectStats, 0, len(st.Projects)),
	}

	index := make(map[string]int, len(st.Projects))
	for i, p := range st.Projects {
		index[p.ID] = i
		stats.PerProject = append(stats.PerProject, ProjectStats{ID: p.ID, Name: p.Name})
	}

	for i := range st.Tasks {
		t := &st.Tasks[i]
		switch t.Status {
		case model.TaskPending:
			stats.Pending++
		case model.TaskInProgress:
			stats.InProgress++
		case model.TaskCompleted:
			stats.Completed++
		}
		if t.IsOverdue(now) {
			stats.Overdue++
		}

		if j, ok := index[t.ProjectID]; ok {
			stats.PerProject[j].Tasks++
			if t.Status == model.TaskCompleted {
				stats.PerProject[j].Completed++
			}
		}
	}
	return stats
}
