package timeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/fastygo/exportflow/domain"
)

// Schedule dates requirements already sorted by Order.
//
// A requirement with prerequisites starts bufferDays after the latest prerequisite ends.
// One without starts at a cursor that begins at now. After every task the cursor moves to
// max(cursor, end+bufferDays), so it never moves backwards when a task with prerequisites
// ends before an earlier independent one.
func Schedule(ordered []domain.Requirement, now time.Time, bufferDays int) []domain.TimelineTask {
	tasks := make([]domain.TimelineTask, 0, len(ordered))
	byRequirement := make(map[string]int, len(ordered))
	cursor := now

	for _, r := range ordered {
		start := cursor
		prereqTasks := make([]string, 0, len(r.PrerequisiteIDs))
		var latest time.Time
		for _, p := range r.PrerequisiteIDs {
			i, ok := byRequirement[p]
			if !ok {
				continue
			}
			prereqTasks = append(prereqTasks, tasks[i].ID)
			if tasks[i].EndDate.After(latest) {
				latest = tasks[i].EndDate
			}
		}
		if len(prereqTasks) > 0 {
			start = latest.AddDate(0, 0, bufferDays)
		}
		end := start.AddDate(0, 0, r.ProcessingTimeDays)

		byRequirement[r.ID] = len(tasks)
		tasks = append(tasks, domain.TimelineTask{
			ID:                  uuid.NewString(),
			RequirementID:       r.ID,
			Name:                r.Name,
			IssuingAuthority:    r.IssuingAuthority,
			StartDate:           start,
			EndDate:             end,
			Status:              domain.TaskNotStarted,
			PrerequisiteTaskIDs: prereqTasks,
			Cost:                r.EstimatedCost,
			Mandatory:           r.Mandatory,
		})

		// never moves backwards
		if next := end.AddDate(0, 0, bufferDays); next.After(cursor) {
			cursor = next
		}
	}
	return tasks
}

// CompletionDate is the latest task end, or zero for an empty list.
func CompletionDate(tasks []domain.TimelineTask) time.Time {
	var last time.Time
	for _, t := range tasks {
		if t.EndDate.After(last) {
			last = t.EndDate
		}
	}
	return last
}
