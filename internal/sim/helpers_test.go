package sim

import logx "animsched/pkg/logx"

func nopLog() logx.Logger { return logx.Nop() }
