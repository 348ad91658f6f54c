package db

import (
	"context"
	"fmt"
	"time"

	"rfpmanager/models"
)

type sampleRFP struct {
	title        string
	description  string
	status       models.RFPStatus
	deadlineDays int
	budget       float64
	requirements []string
}

var sampleRFPs = []sampleRFP{
	{
		title:        "Website Redesign Project",
		description:  "Complete redesign of company website with modern UI/UX",
		status:       models.StatusDraft,
		deadlineDays: 30,
		budget:       10000,
		requirements: []string{
			"Responsive design",
			"Content Management System",
			"SEO optimization",
			"Contact form integration",
		},
	},
	{
		title:        "E-commerce Platform Development",
		description:  "Build a full-featured e-commerce platform with payment integration",
		status:       models.StatusSent,
		deadlineDays: 45,
		budget:       25000,
		requirements: []string{
			"Product catalog",
			"Shopping cart",
			"Payment gateway integration",
			"User accounts",
			"Order management",
		},
	},
	{
		title:        "Mobile App Development",
		description:  "Cross-platform mobile application for iOS and Android",
		status:       models.StatusInReview,
		deadlineDays: 60,
		budget:       35000,
		requirements: []string{
			"React Native",
			"Offline functionality",
			"Push notifications",
			"Social media integration",
		},
	},
}

// SeedSampleRFPs добавляет демонстрационные RFP, пропуская уже существующие по названию.
// Возвращает количество созданных записей.
func (s *Storage) SeedSampleRFPs(ctx context.Context, createdBy string, now time.Time) (int, error) {
	created := 0
	for _, sample := range sampleRFPs {
		var exists bool
		if err := s.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM rfps WHERE title=$1)`, sample.title); err != nil {
			return created, fmt.Errorf("check sample %q: %w", sample.title, err)
		}
		if exists {
			continue
		}

		rfp := models.NewRFP(sample.title, sample.description, createdBy, now)
		rfp.Deadline = now.AddDate(0, 0, sample.deadlineDays)
		rfp.Budget.Amount = sample.budget
		for _, req := range sample.requirements {
			rfp.Requirements = append(rfp.Requirements, models.Requirement{
				Description: req,
				IsRequired:  true,
				Priority:    models.PriorityMedium,
			})
		}
		if sample.status != models.StatusDraft {
			rfp.SetStatus(sample.status, models.SystemUser, now)
		}

		if err := s.CreateRFP(ctx, rfp); err != nil {
			return created, fmt.Errorf("create sample %q: %w", sample.title, err)
		}
		created++
	}
	return created, nil
}

func SampleRFPCount() int { return len(sampleRFPs) }
