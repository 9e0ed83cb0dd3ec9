// Package batch applies the approve transition across many requests, reporting per item.
package batch

import (
	"context"

	apperrors "hire-onboarding/internal/common/errors"
	"hire-onboarding/internal/common/logger"
	"hire-onboarding/internal/common/metrics"
	"hire-onboarding/internal/models"
	"hire-onboarding/internal/onboarding"
)

// Approver is the single-request approve operation.
type Approver interface {
	Approve(ctx context.Context, actor models.Actor, id int64) (*onboarding.Result, error)
}

type ItemResult struct {
	RequestID int64               `json:"requestId"`
	Success   bool                `json:"success"`
	Status    models.Status       `json:"status,omitempty"`
	Code      apperrors.ErrorCode `json:"code,omitempty"`
	Error     string              `json:"error,omitempty"`
	Warnings  []string            `json:"warnings,omitempty"`
}

type Report struct {
	SuccessCount int          `json:"successCount"`
	ErrorCount   int          `json:"errorCount"`
	Results      []ItemResult `json:"results"`
}

type Processor struct {
	approver Approver
	logger   logger.Logger
}

func NewProcessor(approver Approver, log logger.Logger) *Processor {
	return &Processor{approver: approver, logger: logger.ForComponent(log, "batch")}
}

// ApproveMany approves each id in order. A failed item is recorded and the batch moves on;
// the report always covers every id. Duplicate ids are processed once.
func (p *Processor) ApproveMany(ctx context.Context, ids []int64, actor models.Actor) *Report {
	report := &Report{Results: make([]ItemResult, 0, len(ids))}
	seen := make(map[int64]bool, len(ids))

	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		item := ItemResult{RequestID: id}
		if err := ctx.Err(); err != nil {
			item.Code = apperrors.ErrCodeInternal
			item.Error = err.Error()
		} else if res, err := p.approver.Approve(ctx, actor, id); err != nil {
			item.Code = apperrors.CodeOf(err)
			item.Error = errorMessage(err)
		} else {
			item.Success = true
			item.Status = res.Request.Status
			item.Warnings = res.Warnings
		}

		if item.Success {
			report.SuccessCount++
			metrics.BatchItems.WithLabelValues("success").Inc()
		} else {
			report.ErrorCount++
			metrics.BatchItems.WithLabelValues("error").Inc()
		}
		report.Results = append(report.Results, item)
	}

	p.logger.Info("batch approval finished", map[string]interface{}{
		"actor":        actor.String(),
		"requested":    len(ids),
		"successCount": report.SuccessCount,
		"errorCount":   report.ErrorCount,
	})
	return report
}

func errorMessage(err error) string {
	se := apperrors.Normalize(err)
	if se.Details != "" {
		return se.Message + ": " + se.Details
	}
	return se.Message
}
