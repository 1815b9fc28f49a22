package main

import (
	"go.uber.org/zap"

	"github.com/nocta/stubres/coremain"
	"github.com/nocta/stubres/mlog"
)

func main() {
	if err := coremain.Run(); err != nil {
		mlog.L().Fatal("stubres exited", zap.Error(err))
	}
}
