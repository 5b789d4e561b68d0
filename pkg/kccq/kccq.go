// Package kccq scores the 12-item Kansas City Cardiomyopathy Questionnaire (KCCQ-12)
// plus the dizziness question asked alongside it.
//
// Reference: Spertus & Jones (2015) Development and Validation of a Short Version of the
// Kansas City Cardiomyopathy Questionnaire. Circ Cardiovasc Qual Outcomes. 8(5):469-476.
package kccq

import (
	"fmt"
	"math"
	"time"

	"github.com/gdmt-engine/internal/domain"
	"github.com/gdmt-engine/pkg/stats"
)

// AnswerCount is the number of positional answers in a response.
const AnswerCount = 13

// Response is a decoded questionnaire response.
type Response struct {
	Date    time.Time `json:"date,omitempty"`
	Answers []int     `json:"answers"`
}

type domainID int

const (
	physicalLimits domainID = iota
	symptomFrequency
	qualityOfLife
	socialLimits
	dizziness
)

// question describes one position: its scale and the value meaning "does not apply".
type question struct {
	domain        domainID
	min, max      int
	notApplicable int // 0 when the question has no such option
}

var questions = [AnswerCount]question{
	// 1a-1c: limitation showering, walking, hurrying.
	{domain: physicalLimits, min: 1, max: 5, notApplicable: 6},
	{domain: physicalLimits, min: 1, max: 5, notApplicable: 6},
	{domain: physicalLimits, min: 1, max: 5, notApplicable: 6},
	// 2-5: swelling, fatigue, shortness of breath, orthopnea frequency.
	{domain: symptomFrequency, min: 1, max: 5},
	{domain: symptomFrequency, min: 1, max: 7},
	{domain: symptomFrequency, min: 1, max: 7},
	{domain: symptomFrequency, min: 1, max: 5},
	// 6-7: enjoyment, satisfaction.
	{domain: qualityOfLife, min: 1, max: 5},
	{domain: qualityOfLife, min: 1, max: 5},
	// 8a-8c: hobbies, work, family visits.
	{domain: socialLimits, min: 1, max: 5, notApplicable: 6},
	{domain: socialLimits, min: 1, max: 5, notApplicable: 6},
	{domain: socialLimits, min: 1, max: 5, notApplicable: 6},
	// Dizziness, reported raw.
	{domain: dizziness, min: 0, max: 5},
}

// minimumAnswered is how many items of a domain must be answered for it to be scored.
var minimumAnswered = map[domainID]int{
	physicalLimits:   2,
	symptomFrequency: 1,
	qualityOfLife:    1,
	socialLimits:     2,
}

// Calculate scores a response. Domain scores are the mean of the answered items rescaled
// to 0-100 and rounded; the overall score averages the unrounded domain scores.
func Calculate(response Response) (domain.SymptomScore, error) {
	if len(response.Answers) != AnswerCount {
		return domain.SymptomScore{}, domain.NewInvalidInputError("answers",
			fmt.Sprintf("expected %d answers, got %d", AnswerCount, len(response.Answers)), len(response.Answers))
	}

	items := make(map[domainID][]float64)
	var dizzinessAnswer int

	for i, answer := range response.Answers {
		q := questions[i]
		if q.notApplicable != 0 && answer == q.notApplicable {
			continue
		}
		if answer < q.min || answer > q.max {
			return domain.SymptomScore{}, domain.NewInvalidInputError(fmt.Sprintf("answers[%d]", i),
				fmt.Sprintf("must be between %d and %d", q.min, q.max), answer)
		}
		if q.domain == dizziness {
			dizzinessAnswer = answer
			continue
		}
		items[q.domain] = append(items[q.domain], 100*float64(answer-q.min)/float64(q.max-q.min))
	}

	raw := make(map[domainID]float64)
	for id, minimum := range minimumAnswered {
		if len(items[id]) < minimum {
			continue
		}
		if mean, ok := stats.Mean(items[id]); ok {
			raw[id] = mean
		}
	}

	score := domain.SymptomScore{
		Dizziness: float64(dizzinessAnswer),
		Date:      response.Date,
	}
	if v, ok := raw[physicalLimits]; ok {
		rounded := math.Round(v)
		score.PhysicalLimits = &rounded
	}
	if v, ok := raw[socialLimits]; ok {
		rounded := math.Round(v)
		score.SocialLimits = &rounded
	}
	score.SymptomFrequency = math.Round(raw[symptomFrequency])
	score.QualityOfLife = math.Round(raw[qualityOfLife])

	var scored []float64
	for _, id := range []domainID{physicalLimits, symptomFrequency, qualityOfLife, socialLimits} {
		if v, ok := raw[id]; ok {
			scored = append(scored, v)
		}
	}
	overall, _ := stats.Mean(scored)
	score.Overall = math.Round(overall)

	return score, nil
}
