// Package rollover resets budget accumulators on cron schedules.
//
// The default schedules reset daily totals at midnight and monthly totals
// at midnight on the first of the month:
//
//	s := rollover.NewScheduler(guardrails, rollover.Config{
//	    DailySchedule:   "0 0 * * *",
//	    MonthlySchedule: "0 0 1 * *",
//	}, logger)
//	if err := s.Start(ctx); err != nil {
//	    return err
//	}
//	defer s.Stop()
package rollover
