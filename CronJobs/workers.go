package CronJobs

import (
	"log"
	"time"

	"KaufmannHealth/Controllers"

	"github.com/go-co-op/gocron"
)

// ReminderService mirrors the HTTP cron endpoints in-process so the nudges
// run even when no external scheduler is configured.
type ReminderService struct{}

func NewReminderService() *ReminderService {
	return &ReminderService{}
}

func (rs *ReminderService) StartReminderCron() *gocron.Scheduler {
	scheduler := gocron.NewScheduler(time.Local)

	scheduler.Every(15).Minutes().Do(func() {
		runJob("confirmation_reminders", Controllers.RunConfirmationReminders)
	})
	scheduler.Every(1).Hours().Do(func() {
		runJob("selection_nudges", Controllers.RunSelectionNudges)
	})
	scheduler.Every(6).Hours().Do(func() {
		runJob("document_reminders", Controllers.RunDocumentReminders)
	})
	scheduler.Every(12).Hours().Do(func() {
		runJob("blocker_survey", Controllers.RunBlockerSurvey)
	})
	scheduler.Every(1).Hours().Do(func() {
		runJob("conversion_backfill", Controllers.RunConversionBackfill)
	})

	scheduler.StartAsync()
	log.Println("Reminder cron jobs started")

	return scheduler
}

func runJob(name string, run func() (int, error)) {
	sent, err := run()
	if err != nil {
		log.Printf("Error running %s: %v", name, err)
		return
	}
	if sent > 0 {
		log.Printf("%s: sent %d", name, sent)
	}
}
