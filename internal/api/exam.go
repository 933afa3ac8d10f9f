package api

import (
	"github.com/gin-gonic/gin"

	"github.com/vimaru/luyenthi/internal/errors"
	"github.com/vimaru/luyenthi/internal/quiz"
)

func (a *API) listLicenses(c *gin.Context) {
	licenses, err := a.catalog.ListLicenses(c.Request.Context())
	if err != nil {
		renderError(c, err)
		return
	}

	renderJSON(c, gin.H{"licenses": licenses})
}

func (a *API) getLicense(c *gin.Context) {
	license, err := a.catalog.GetLicense(c.Request.Context(), c.Param("id"))
	if err != nil {
		renderError(c, err)
		return
	}

	renderJSON(c, license)
}

func (a *API) listLicenseQuestions(c *gin.Context) {
	qs, err := a.catalog.ListQuestions(c.Request.Context(), c.Param("id"))
	if err != nil {
		renderError(c, err)
		return
	}

	renderJSON(c, gin.H{"questions": qs})
}

func (a *API) listSubjectQuestions(c *gin.Context) {
	qs, err := a.catalog.ListSubjectQuestions(c.Request.Context(), c.Param("id"))
	if err != nil {
		renderError(c, err)
		return
	}

	renderJSON(c, gin.H{"questions": qs})
}

// issueExam builds a practice-exam payload for a license: the full
// pool shuffled and truncated. The correct answer ids ship with the
// payload because scoring happens on the client.
func (a *API) issueExam(c *gin.Context) {
	licenseID := c.Param("licenseId")

	pool, err := a.catalog.ListQuestions(c.Request.Context(), licenseID)
	if err != nil {
		renderError(c, err)
		return
	}
	if len(pool) == 0 {
		renderError(c, errors.New(errors.CodeNotFound,
			errors.WithMessagef("no questions for license %s", licenseID)))
		return
	}

	q, err := quiz.Build("Đề thi thử", pool, quiz.DefaultExamSize, 0)
	if err != nil {
		renderError(c, err)
		return
	}

	renderJSON(c, q)
}
