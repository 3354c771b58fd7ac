package recommendations

import (
	"fmt"
	"strings"
	"time"

	"github.com/jordanlanch/bookworm/pkg/models"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

const (
	explainSimilarUsers  = "Readers with similar tastes enjoyed this book"
	explainTrending      = "Currently popular in the BookWorm community"
	explainFallback      = "Popular choice among BookWorm readers"
	explainNewReleases   = "Recently added to the BookWorm library"
	reasonCommunity      = "Community favorite"
	reasonFavoriteGenre  = "In your favorite genre"
	reasonFreshAddition  = "Fresh addition"
	explainMultiStrategy = "Recommended based on %d factors"
)

// count formats n with thousands separators
func count(n int) string {
	return printer.Sprintf("%d", n)
}

func stars(rating float64) string {
	return fmt.Sprintf("%.1f", rating)
}

func explainGenre(genre string, read int, known bool) string {
	if !known {
		return interestReason(genre)
	}
	return fmt.Sprintf("You enjoy %s books and have read %s of them", genre, count(read))
}

func explainRating(mean float64) string {
	return fmt.Sprintf("Matches your average rating of %s stars", stars(mean))
}

func explainNewRelease(favorites []string) string {
	switch len(favorites) {
	case 0:
		return explainNewReleases
	case 1:
		return "New release in your favorite genre: " + favorites[0]
	default:
		return "New release in your favorite genres: " + strings.Join(favorites, ", ")
	}
}

func explainCombined(strategies int) string {
	return fmt.Sprintf(explainMultiStrategy, strategies)
}

func interestReason(genre string) string {
	return fmt.Sprintf("Matches your interest in %s", genre)
}

func highlyRatedReason(b models.Book) string {
	return fmt.Sprintf("Highly rated (%s stars)", stars(b.AverageRating))
}

func popularReason(b models.Book) string {
	return fmt.Sprintf("Popular choice (%s readers)", count(b.TotalShelved))
}

func similarReadersReason(n int) string {
	return fmt.Sprintf("Liked by %s readers with similar taste", count(n))
}

// genericReasons explain a book no strategy picked
func genericReasons(b models.Book) []string {
	return []string{
		highlyRatedReason(b),
		popularReason(b),
		fmt.Sprintf("Well-reviewed (%s reviews)", count(b.TotalReviews)),
	}
}

// timeAgo renders the age of t at now in days, weeks or months
func timeAgo(t, now time.Time) string {
	days := int(now.Sub(t).Hours() / 24)
	if days < 0 {
		days = 0
	}

	switch {
	case days < 7:
		return fmt.Sprintf("%d days ago", days)
	case days < 30:
		return fmt.Sprintf("%d weeks ago", days/7)
	default:
		return fmt.Sprintf("%d months ago", days/30)
	}
}
