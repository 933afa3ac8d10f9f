package api

import (
	"github.com/gin-gonic/gin"

	"github.com/vimaru/luyenthi/internal/domain"
	"github.com/vimaru/luyenthi/internal/errors"
	"github.com/vimaru/luyenthi/internal/examroom"
)

type createRoomRequest struct {
	Name      string `json:"name" binding:"required"`
	LicenseID string `json:"license_id" binding:"required"`
	// Duration in seconds.
	Duration int    `json:"duration" binding:"required,min=60,max=14400"`
	Password string `json:"password"`
}

func (a *API) createRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		renderError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	claims := currentClaims(c)
	room, err := a.rooms.CreateRoom(c.Request.Context(), examroom.CreateRoomRequest{
		Name:        req.Name,
		LicenseID:   req.LicenseID,
		TeacherID:   claims.UserID,
		TeacherName: claims.Name,
		Duration:    req.Duration,
		Password:    req.Password,
	})
	if err != nil {
		renderError(c, err)
		return
	}

	renderJSON(c, room)
}

func (a *API) getRoom(c *gin.Context) {
	room, err := a.rooms.GetRoom(c.Request.Context(), c.Param("id"))
	if err != nil {
		renderError(c, err)
		return
	}

	// The password gates joining; it never leaves the server.
	room.Password = ""

	renderJSON(c, room)
}

func (a *API) startExam(c *gin.Context) {
	room, err := a.rooms.StartExam(c.Request.Context(), c.Param("id"))
	if err != nil {
		renderError(c, err)
		return
	}

	renderJSON(c, room)
}

func (a *API) finishExam(c *gin.Context) {
	room, err := a.rooms.FinishExam(c.Request.Context(), c.Param("id"))
	if err != nil {
		renderError(c, err)
		return
	}

	renderJSON(c, room)
}

func (a *API) listRoster(c *gin.Context) {
	roster, err := a.roster.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		renderError(c, err)
		return
	}

	renderJSON(c, gin.H{"participants": roster})
}

type joinRoomRequest struct {
	SBD      string `json:"sbd" binding:"required"`
	Password string `json:"password"`
}

func (a *API) joinRoom(c *gin.Context) {
	var req joinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		renderError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	room, err := a.rooms.GetRoom(c.Request.Context(), c.Param("id"))
	if err != nil {
		renderError(c, err)
		return
	}

	if room.Password != "" && room.Password != req.Password {
		renderError(c, errors.New(errors.CodePermissionDenied, errors.WithMessagef("wrong room password")))
		return
	}

	claims := currentClaims(c)
	err = a.roster.Join(c.Request.Context(), room.RoomID, domain.Participant{
		UID:      claims.UserID,
		Name:     claims.Name,
		SBD:      req.SBD,
		TimeLeft: room.Duration,
	})
	if err != nil {
		renderError(c, err)
		return
	}

	renderJSON(c, gin.H{"status": "joined"})
}

type progressRequest struct {
	Status   domain.ParticipantStatus `json:"status" binding:"required,oneof=joined doing submitted offline"`
	Score    int                      `json:"score"`
	TimeLeft int                      `json:"time_left"`
	Answered int                      `json:"answered"`
	SBD      string                   `json:"sbd"`
}

// updateProgress writes the caller's own live roster record. Records
// are partitioned by uid, so participants never overwrite each other.
func (a *API) updateProgress(c *gin.Context) {
	var req progressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		renderError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	claims := currentClaims(c)
	err := a.roster.UpdateProgress(c.Request.Context(), c.Param("id"), domain.Participant{
		UID:      claims.UserID,
		Name:     claims.Name,
		SBD:      req.SBD,
		Status:   req.Status,
		Score:    req.Score,
		TimeLeft: req.TimeLeft,
		Answered: req.Answered,
	})
	if err != nil {
		renderError(c, err)
		return
	}

	renderJSON(c, gin.H{"status": "ok"})
}

type submitResultRequest struct {
	Score   int               `json:"score"`
	Total   int               `json:"total" binding:"required"`
	Answers map[string]string `json:"answers"`
}

func (a *API) submitResult(c *gin.Context) {
	var req submitResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		renderError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	claims := currentClaims(c)
	res, err := a.rooms.SubmitResult(c.Request.Context(), examroom.SubmitResultRequest{
		RoomID:  c.Param("id"),
		UserID:  claims.UserID,
		Score:   req.Score,
		Total:   req.Total,
		Answers: req.Answers,
	})
	if err != nil {
		renderError(c, err)
		return
	}

	renderJSON(c, res)
}

func (a *API) kickParticipant(c *gin.Context) {
	if err := a.roster.Kick(c.Request.Context(), c.Param("id"), c.Param("uid")); err != nil {
		renderError(c, err)
		return
	}

	renderJSON(c, gin.H{"status": "kicked"})
}

func (a *API) forceSubmit(c *gin.Context) {
	if err := a.rooms.ForceSubmit(c.Request.Context(), c.Param("id"), c.Param("uid")); err != nil {
		renderError(c, err)
		return
	}

	renderJSON(c, gin.H{"status": "ok"})
}
