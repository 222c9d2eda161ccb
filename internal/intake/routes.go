package intake

import (
	"fmt"
	"log"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lgarneau/devisauto/internal/correlate"
	"github.com/lgarneau/devisauto/internal/store"
)

// registerRoutes sets up all intake routes on the Gin router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	router.POST("/api/requests", handleCreateRequest(opts))
	router.POST("/api/requests/:id/images", handleUploadImage(opts))
	router.GET("/api/health", handleHealth(opts))
}

// intakeRequest is the submission payload from the customer form.
type intakeRequest struct {
	Name         string   `json:"name" binding:"required"`
	Email        string   `json:"email" binding:"required,email"`
	Phone        string   `json:"phone"`
	CarBrand     string   `json:"carBrand"`
	LicensePlate string   `json:"licensePlate"`
	VIN          string   `json:"vin" binding:"required"`
	Description  string   `json:"description"`
	ImageURLs    []string `json:"imageUrls"`
}

func handleCreateRequest(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in intakeRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		vin := strings.ToUpper(strings.TrimSpace(in.VIN))
		if !correlate.IsVIN(vin) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "vin must be 17 characters, alphanumeric excluding I, O and Q"})
			return
		}

		now := time.Now()
		token := correlate.NewToken(now)
		req := store.ServiceRequest{
			Name:        in.Name,
			Email:       in.Email,
			Phone:       in.Phone,
			VIN:         vin,
			Brand:       in.CarBrand,
			PlateNumber: in.LicensePlate,
			Notes:       in.Description,
			ImageURLs:   in.ImageURLs,
			SubmittedAt: now,
		}
		rec, err := opts.Store.Create(c.Request.Context(), store.TableServiceRequests, req.Fields())
		if err != nil {
			log.Printf("intake: create request: %v", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "could not persist request"})
			return
		}
		req.ID = rec.ID

		res, err := opts.Dispatcher.SendQuoteRequests(c.Request.Context(), token, req)
		if err != nil {
			// The record exists; the caller learns the fan-out failed so
			// support can re-dispatch.
			log.Printf("intake: dispatch %s: %v", vin, err)
			opts.Ops.Notify(c.Request.Context(), "fan-out failed for VIN %s: %v", vin, err)
			c.JSON(http.StatusBadGateway, gin.H{"id": rec.ID, "error": "request saved but garages could not be contacted"})
			return
		}

		opts.Ops.Notify(c.Request.Context(), "new quote request %s (VIN %s): %d/%d garages contacted", rec.ID, vin, res.Contacted, res.Total)
		c.JSON(http.StatusCreated, gin.H{
			"id":        rec.ID,
			"token":     token,
			"contacted": res.Contacted,
			"failed":    res.Failed,
			"total":     res.Total,
		})
	}
}

func handleUploadImage(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		if opts.Blobs == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image storage not configured"})
			return
		}
		id := c.Param("id")
		rec, err := opts.Store.Get(c.Request.Context(), store.TableServiceRequests, id)
		if err != nil {
			if err == store.ErrNotFound {
				c.JSON(http.StatusNotFound, gin.H{"error": "unknown request"})
				return
			}
			c.JSON(http.StatusBadGateway, gin.H{"error": "could not load request"})
			return
		}

		file, header, err := c.Request.FormFile("image")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field \"image\" is required"})
			return
		}
		defer file.Close()

		name := fmt.Sprintf("%s-%s%s", id, uuid.NewString()[:8], path.Ext(header.Filename))
		url, err := opts.Blobs.Upload(c.Request.Context(), name, file)
		if err != nil {
			log.Printf("intake: upload image for %s: %v", id, err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "image upload failed"})
			return
		}

		req := store.ServiceRequestFromRecord(rec)
		req.ImageURLs = append(req.ImageURLs, url)
		if _, err := opts.Store.Update(c.Request.Context(), store.TableServiceRequests, id, map[string]any{
			store.FieldImageURLs: req.Fields()[store.FieldImageURLs],
		}); err != nil {
			log.Printf("intake: record image for %s: %v", id, err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "image stored but could not be attached"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"url": url, "imageUrls": req.ImageURLs})
	}
}

func handleHealth(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := opts.Store.Query(c.Request.Context(), store.TableGarages, nil); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
