package main

import "github.com/sigte/riskengine/pkg/logger"

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}
