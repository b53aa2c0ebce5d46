// Package anim schedules cycle-relative animation jobs for the CPU visualisation.
//
// A producer (the simulation stepping logic) enqueues batches of jobs for the
// current simulated cycle. An independent dispatch loop ticks at a fixed
// period and fires at most one due job per tick, measured against the start
// of the cycle.
//
// Overview:
//   - NewCycle resets the timing base and discards every pending job.
//   - ScheduleBatch / ScheduleInstruction append jobs at the running cycle delay.
//   - The overload guard drops everything while the simulated clock runs
//     faster than the configured threshold and shows a notice once per
//     transition into that state.
//   - Replay plays a recorded batch back under a fresh cycle using only its
//     within-instruction pacing.
//
// Every queued job carries the cycle generation it was scheduled under. The
// dispatcher never fires a job from another generation, so NewCycle does not
// have to wait for an in-flight tick.
package anim
