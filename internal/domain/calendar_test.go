package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"namaz/internal/domain"
)

func TestMonthMatrix_AllMonths(t *testing.T) {
	for year := 1999; year <= 2030; year++ {
		for month := time.January; month <= time.December; month++ {
			ref := domain.Date{Year: year, Month: month, Day: 17}
			weeks := domain.MonthMatrix(ref)

			var days []int
			total := 0
			for _, w := range weeks {
				for _, c := range w {
					total++
					if !c.IsPadding() {
						require.Equal(t, month, c.Date.Month)
						days = append(days, c.Date.Day)
					}
				}
			}
			require.Zero(t, total%7, "%d-%02d", year, month)

			n := domain.DaysIn(year, month)
			require.Len(t, days, n)
			for i, d := range days {
				require.Equal(t, i+1, d)
			}
		}
	}
}

func TestMonthMatrix_March2025(t *testing.T) {
	// 2025-03-01 is a Saturday.
	weeks := domain.MonthMatrix(domain.Date{Year: 2025, Month: time.March, Day: 31})
	require.Len(t, weeks, 6)
	for i := 0; i < 6; i++ {
		assert.True(t, weeks[0][i].IsPadding())
	}
	assert.Equal(t, 1, weeks[0][6].Date.Day)
	assert.Equal(t, 31, weeks[5][1].Date.Day)
	for i := 2; i < 7; i++ {
		assert.True(t, weeks[5][i].IsPadding())
	}
}

func TestMonthMatrix_February2015NoPadding(t *testing.T) {
	// 2015-02-01 is a Sunday and February has 28 days: exactly four full weeks.
	weeks := domain.MonthMatrix(domain.Date{Year: 2015, Month: time.February, Day: 1})
	require.Len(t, weeks, 4)
	assert.Equal(t, 1, weeks[0][0].Date.Day)
	assert.Equal(t, 28, weeks[3][6].Date.Day)
}

func TestMonthBounds(t *testing.T) {
	first, last := domain.MonthBounds(domain.Date{Year: 2024, Month: time.February, Day: 10})
	assert.Equal(t, "2024-02-01", first.Key())
	assert.Equal(t, "2024-02-29", last.Key())
}
