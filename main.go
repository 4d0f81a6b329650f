package main

import (
	"github.com/yatube-project/yatube/config"
	"github.com/yatube-project/yatube/models"
	"github.com/yatube-project/yatube/routes"
	"github.com/yatube-project/yatube/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(
		&models.User{},
		&models.Group{},
		&models.Post{},
		&models.Comment{},
		&models.Follow{},
		&models.PageView{},
	)

	r := routes.SetupRouter(db, utils.NewRedisCache())

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
