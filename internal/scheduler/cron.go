package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shaiso/Prospector/internal/domain"
)

// cronParser — стандартные пятипольные выражения: "минуты часы дни месяцы дни_недели".
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// CalculateNextDue вычисляет следующий запуск discover-расписания после from.
//
// Cron считается в часовом поясе расписания (невалидный пояс — UTC),
// интервал просто прибавляется. Результат в UTC.
func CalculateNextDue(sched *domain.Schedule, from time.Time) (time.Time, error) {
	loc, err := time.LoadLocation(sched.Timezone)
	if err != nil {
		loc = time.UTC
	}
	from = from.In(loc)

	switch {
	case sched.IsCron():
		spec, err := cronParser.Parse(sched.CronExpr)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse cron expression %q: %w", sched.CronExpr, err)
		}
		return spec.Next(from).UTC(), nil
	case sched.IsInterval():
		return from.Add(time.Duration(sched.IntervalSec) * time.Second).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("schedule %s has neither cron_expr nor interval_sec", sched.ID)
	}
}

// ValidateCronExpr проверяет cron-выражение.
func ValidateCronExpr(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// ScheduleKey — ключ идемпотентности discover-задачи: один запуск на (schedule, due time).
func ScheduleKey(sched *domain.Schedule) string {
	if sched.NextDueAt == nil {
		return ""
	}
	return fmt.Sprintf("%s_%d", sched.ID, sched.NextDueAt.Unix())
}
