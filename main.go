package main

import (
	"github.com/Pablo-Wynistorf/DataDrop/api"
	"github.com/Pablo-Wynistorf/DataDrop/config"
	"github.com/Pablo-Wynistorf/DataDrop/service"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	gin.SetMode(gin.ReleaseMode)

	err := config.Setup()
	if err != nil {
		panic(err)
	}

	a, err := api.NewRouter()
	if err != nil {
		panic(err)
	}

	service.StartWorker(a.Deleter)

	_, err = service.StartJobs(a.DB, a.Deleter)
	if err != nil {
		panic(err)
	}

	zap.L().Info("Server starting")

	err = a.Router.Run(":" + viper.GetString("host.port"))
	if err != nil {
		panic(err)
	}
}
