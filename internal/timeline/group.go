package timeline

import (
	"time"

	"github.com/MikeSquared-Agency/chatline/internal/chat"
)

const dayLabelLayout = "January 2, 2006"

// DayGroup is the messages of one local calendar day.
type DayGroup struct {
	Label    string         `json:"label"`
	Day      string         `json:"day"` // YYYY-MM-DD
	Messages []chat.Message `json:"messages"`
}

// GroupedByDay partitions the messages by local calendar day. Buckets appear
// in the order their day first occurs and keep conversation order inside.
func (t *Timeline) GroupedByDay() []DayGroup {
	msgs := t.Messages()
	return groupByDay(msgs, t.now().In(t.loc), t.loc)
}

func groupByDay(msgs []chat.Message, now time.Time, loc *time.Location) []DayGroup {
	var groups []DayGroup
	index := make(map[string]int)
	for _, m := range msgs {
		day := m.Timestamp.In(loc).Format(time.DateOnly)
		i, ok := index[day]
		if !ok {
			i = len(groups)
			index[day] = i
			groups = append(groups, DayGroup{
				Label: dayLabel(m.Timestamp.In(loc), now),
				Day:   day,
			})
		}
		groups[i].Messages = append(groups[i].Messages, m)
	}
	return groups
}

func dayLabel(ts, now time.Time) string {
	y, m, d := ts.Date()
	if sameDay(y, m, d, now) {
		return "Today"
	}
	if sameDay(y, m, d, now.AddDate(0, 0, -1)) {
		return "Yesterday"
	}
	return ts.Format(dayLabelLayout)
}

func sameDay(y int, m time.Month, d int, ref time.Time) bool {
	ry, rm, rd := ref.Date()
	return y == ry && m == rm && d == rd
}
