package Routes

import (
	"KaufmannHealth/Controllers"
	"KaufmannHealth/Middleware"
	"KaufmannHealth/SSE"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

func ConfigRoutes(router *gin.Engine) {
	// Gzip Compression
	router.Use(gzip.Gzip(gzip.BestSpeed))

	// Public routes
	public := router.Group("/api/public")
	{
		public.POST("/leads", Controllers.CreateLead)
		public.GET("/leads/confirm", Controllers.ConfirmEmail)
		public.POST("/verification/send-code", Controllers.SendVerificationCode)
		public.POST("/verification/check-code", Controllers.CheckVerificationCode)
		public.GET("/matches/:uuid", Controllers.FetchMatchesBySecureUUID)
		public.POST("/matches/:uuid/respond", Controllers.RespondToMatch)
		public.GET("/bookings/availability", Controllers.GetAvailability)
		public.POST("/bookings", Controllers.CreateBooking)
		public.POST("/bookings/:uuid/viewed", Controllers.MarkBookingViewed)
		public.POST("/cal/webhook", Controllers.CalWebhook)
		public.POST("/twilio/webhook", Controllers.TwilioWebhook)
	}

	// Admin session routes
	router.POST("/api/admin/login", Controllers.AdminLogin)
	router.GET("/api/admin/session", Controllers.AdminSessionCheck)
	router.POST("/api/admin/logout", Controllers.AdminLogout)

	admin := router.Group("/api/admin")
	admin.Use(Middleware.AdminSessionMiddleware())
	{
		admin.GET("/leads", Controllers.FetchLeadQueue)
		admin.POST("/therapists/verify", Controllers.VerifyTherapist)
		admin.POST("/therapists/documents", Controllers.UploadTherapistDocument)
		admin.POST("/leads/returning-concierge", Controllers.MarkReturningConcierge)
		admin.POST("/leads/export", Controllers.ExportLeadsExcel)
		admin.GET("/sse", SSE.RequestSSE)
	}

	// Cron-capable routes: cron secret or admin cookie with same-origin.
	cron := router.Group("/api/admin/cron")
	cron.Use(Middleware.CronOrAdminMiddleware())
	{
		cron.POST("/matches/rebuild", Controllers.RebuildMatches)
		cron.POST("/reminders/confirmation", Controllers.ConfirmationRemindersHandler)
		cron.POST("/reminders/selection", Controllers.SelectionNudgesHandler)
		cron.POST("/reminders/documents", Controllers.DocumentRemindersHandler)
		cron.POST("/surveys/blockers", Controllers.BlockerSurveyHandler)
		cron.POST("/conversions/backfill", Controllers.ConversionBackfillHandler)
		cron.GET("/errors/digest", Controllers.SystemErrorDigest)
	}
}
