package Controllers

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"KaufmannHealth/Logger"
	"KaufmannHealth/Matching"
	"KaufmannHealth/Middleware"
	"KaufmannHealth/Models"
	"KaufmannHealth/SSE"
	"KaufmannHealth/Storage"
	"KaufmannHealth/Utils/Token"

	"github.com/360EntSecGroup-Skylar/excelize"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

type AdminLoginInput struct {
	Password string `json:"password" binding:"required"`
}

func AdminLogin(c *gin.Context) {
	var input AdminLoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hash := os.Getenv("ADMIN_PASSWORD_HASH")
	if hash == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(input.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	token := Token.GenerateSessionToken(Token.SessionLifetime)
	c.SetCookie(Middleware.AdminCookieName, token, int(Token.SessionLifetime.Seconds()), "/", "", true, true)
	c.JSON(http.StatusOK, gin.H{"message": "Login Successful"})
}

// AdminSessionCheck lets the login UI distinguish why a session was rejected.
func AdminSessionCheck(c *gin.Context) {
	cookie, err := c.Cookie(Middleware.AdminCookieName)
	if err != nil || cookie == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"valid": false, "reason": Token.ReasonInvalidFormat})
		return
	}
	valid, reason := Token.VerifySessionToken(cookie)
	if !valid {
		c.JSON(http.StatusUnauthorized, gin.H{"valid": false, "reason": reason})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

func AdminLogout(c *gin.Context) {
	c.SetCookie(Middleware.AdminCookieName, "", -1, "/", "", true, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

type leadQueueEntry struct {
	Person        Models.Person `json:"person"`
	Deprioritized bool          `json:"deprioritized"`
	Reason        string        `json:"reason,omitempty"`
}

// FetchLeadQueue returns patient leads for the admin dashboard, needs-attention
// first. Deprioritization: active booking beats everything, then non-stale
// active matches, then an already-sent selection email.
func FetchLeadQueue(c *gin.Context) {
	var patients []Models.Person
	if err := Models.DB.Where("type = ? AND status <> ?", Models.PersonTypePatient, Models.PersonStatusAnonymous).
		Order("created_at DESC").Limit(500).Find(&patients).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unexpected error"})
		return
	}

	needsAttention := make([]leadQueueEntry, 0, len(patients))
	deprioritized := make([]leadQueueEntry, 0)

	for index := range patients {
		patient := patients[index]

		hasBooking, err := Models.HasActiveBooking(patient.ID)
		if err != nil {
			Logger.LogError("api.admin.queue", err, map[string]interface{}{"person_id": patient.ID})
			continue
		}
		matches, err := Models.GetMatchesByPatientID(patient.ID)
		if err != nil {
			Logger.LogError("api.admin.queue", err, map[string]interface{}{"person_id": patient.ID})
			continue
		}
		selectionSent, err := Models.WasNotified(patient.ID, Models.StageSelectionEmail)
		if err != nil {
			Logger.LogError("api.admin.queue", err, map[string]interface{}{"person_id": patient.ID})
			continue
		}

		low, reason := Matching.IsDeprioritized(&patient, hasBooking, matches, selectionSent)
		entry := leadQueueEntry{Person: patient, Deprioritized: low, Reason: reason}
		if low {
			deprioritized = append(deprioritized, entry)
		} else {
			needsAttention = append(needsAttention, entry)
		}
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"needs_attention": needsAttention,
		"deprioritized":   deprioritized,
	}, "error": nil})
}

// VerifyTherapist flips a pending profile to verified and opens it for
// matching.
func VerifyTherapist(c *gin.Context) {
	var input struct {
		TherapistID  uint `json:"therapist_id" binding:"required"`
		AcceptingNew bool `json:"accepting_new"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := Models.DB.Model(&Models.TherapistProfile{}).Where("id = ?", input.TherapistID).
		Updates(map[string]interface{}{
			"status":        Models.TherapistStatusVerified,
			"accepting_new": input.AcceptingNew,
		})
	if result.Error != nil {
		Logger.LogError("api.admin.therapists", result.Error, map[string]interface{}{"therapist_id": input.TherapistID})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unexpected error"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Therapist verified"})
}

// UploadTherapistDocument stores a certificate or photo in the documents
// bucket and records the key on the profile.
func UploadTherapistDocument(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(10 << 20); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unable to parse form"})
		return
	}

	therapistID := c.PostForm("therapist_id")
	if therapistID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "therapist_id is required"})
		return
	}
	var profile Models.TherapistProfile
	if err := Models.DB.Where("id = ?", therapistID).First(&profile).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unable to retrieve files from form data"})
		return
	}

	keys := []string{}
	for _, file := range form.File["files"] {
		src, err := file.Open()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to open the file"})
			return
		}
		data, err := io.ReadAll(src)
		src.Close()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to read the file"})
			return
		}

		key, err := Storage.UploadTherapistDocument(c.Request.Context(), profile.ID, file.Filename, data,
			file.Header.Get("Content-Type"))
		if err != nil {
			Logger.LogError("api.admin.documents", err, map[string]interface{}{"therapist_id": profile.ID})
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to store the file"})
			return
		}
		keys = append(keys, key)
	}

	profile.DocumentKeys = append(profile.DocumentKeys, keys...)
	if err := Models.DB.Model(&profile).Update("document_keys", profile.DocumentKeys).Error; err != nil {
		Logger.LogError("api.admin.documents", err, map[string]interface{}{"therapist_id": profile.ID})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unexpected error"})
		return
	}

	SSE.Broadcaster.Broadcast(SSE.EventMatchesUpdated)
	c.JSON(http.StatusOK, gin.H{"message": "Files uploaded successfully", "keys": keys})
}

// ExportLeadsExcel writes the current lead list to a spreadsheet for offline
// review.
func ExportLeadsExcel(c *gin.Context) {
	var input struct {
		DateFrom string `json:"date_from"`
		DateTo   string `json:"date_to"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var leads []Models.Person
	query := Models.DB.Model(&Models.Person{}).Where("type = ?", Models.PersonTypePatient)
	if input.DateFrom != "" && input.DateTo != "" {
		query = query.Where("created_at BETWEEN ? AND ?", input.DateFrom, input.DateTo)
	}
	if err := query.Find(&leads).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unexpected error"})
		return
	}

	headers := map[string]string{
		"A1": "ID",
		"B1": "Name",
		"C1": "Email",
		"D1": "Phone",
		"E1": "Status",
		"F1": "Campaign",
		"G1": "Created At",
	}
	file := excelize.NewFile()
	sheet := "Leads"
	file.NewSheet(sheet)
	file.DeleteSheet("Sheet1")
	for k, v := range headers {
		file.SetCellValue(sheet, k, v)
	}

	for i := 0; i < len(leads); i++ {
		appendLeadRow(sheet, file, i, leads)
	}
	var filename string = fmt.Sprintf("./Leads.xlsx")
	if err := file.SaveAs(filename); err != nil {
		log.Println(err)
	}
	c.File(filename)
}

func appendLeadRow(sheet string, file *excelize.File, index int, rows []Models.Person) {
	rowCount := index + 2
	email := ""
	if rows[index].Email != nil {
		email = *rows[index].Email
	}
	phone := ""
	if rows[index].Phone != nil {
		phone = *rows[index].Phone
	}
	file.SetCellValue(sheet, fmt.Sprintf("A%v", rowCount), rows[index].ID)
	file.SetCellValue(sheet, fmt.Sprintf("B%v", rowCount), rows[index].Name)
	file.SetCellValue(sheet, fmt.Sprintf("C%v", rowCount), email)
	file.SetCellValue(sheet, fmt.Sprintf("D%v", rowCount), phone)
	file.SetCellValue(sheet, fmt.Sprintf("E%v", rowCount), rows[index].Status)
	file.SetCellValue(sheet, fmt.Sprintf("F%v", rowCount), rows[index].CampaignSource)
	file.SetCellValue(sheet, fmt.Sprintf("G%v", rowCount), rows[index].CreatedAt.Format(time.RFC3339))
}
