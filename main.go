package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Veetaha/snowpity/env"
	"github.com/Veetaha/snowpity/server"
	"github.com/Veetaha/snowpity/service/logger"
)

func main() {
	server.Init()

	port := env.GetInt64(context.Background(), "PORT")
	logger.For(nil).Infof("listening on :%d", port)
	if err := http.ListenAndServe(fmt.Sprintf(":%d", port), nil); err != nil {
		logger.For(nil).Fatal(err)
	}
}
