// Package schedule turns a trigger configuration into concrete future fire
// times.
//
// # Overview
//
// A trigger is configured either in structured form (repeat mode + times) or
// as a raw crontab override. Next() computes the upcoming fire times for a
// given instant; it is a pure function of (config, now) and is cheap enough
// to call on every edit for live preview.
//
// # Structured modes
//
//   - daily: one or more HH:MM times, every day
//   - weekly: HH:MM times on a set of weekdays (0 = Sunday)
//   - interval: every N hours between a start and end time
//
// # Crontab override
//
// A non-blank crontab string fully supersedes the structured fields. The
// supported syntax is an intentional subset of POSIX cron: five
// whitespace-separated fields are required, but only the minute and hour
// fields drive the computation. Day-of-month, month and day-of-week are
// accepted syntactically and ignored; the scan always walks a fixed 7-day
// window. Each field accepts "*", comma lists, "a-b" ranges, "a/b" steps
// (left operand ignored, series starts at 0) and bare numbers.
//
// # Known quirks, kept on purpose
//
// Comma-list values are not checked against the field bound, and step series
// are not clipped to it; out-of-range values roll forward when the timestamp
// is built (hour 25 lands on the next day at 01:00). The interval end bound
// compares the hour only. These match the behavior users already rely on for
// previews and are covered by tests rather than silently corrected.
package schedule
