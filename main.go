package main

import (
	"os"

	"KaufmannHealth/CalCom"
	"KaufmannHealth/CronJobs"
	"KaufmannHealth/Email"
	"KaufmannHealth/Logger"
	"KaufmannHealth/Models"
	"KaufmannHealth/Routes"
	"KaufmannHealth/SMS"
	"KaufmannHealth/Storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	Models.ConnectDataBase()
	Logger.Setup()
	Email.Setup()
	SMS.Setup()
	CalCom.Setup()
	Storage.Setup()

	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{os.Getenv("PUBLIC_BASE_URL"), "http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "x-cron-secret", "Authorization"},
		AllowCredentials: true,
	}))
	Routes.ConfigRoutes(router)

	reminderService := CronJobs.NewReminderService()
	scheduler := reminderService.StartReminderCron()
	_ = scheduler

	router.Run(":3005")
}
