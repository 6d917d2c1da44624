// Package pages renders the site's server-side pages as templ components.
package pages

import (
	"context"
	"embed"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/a-h/templ"

	"foundation_site/internal/models"
)

//go:embed templates/*.html
var files embed.FS

// Breadcrumb is one step of the navigation trail.
type Breadcrumb struct {
	Title string
	URL   string
}

// Site is the data every page shares.
type Site struct {
	AppName   string
	AppURL    string
	Year      int
	UserEmail string
	UserUID   string
}

// PageProps is passed to the static content pages.
type PageProps struct {
	Site
	Title       string
	ActiveNav   string
	Breadcrumbs []Breadcrumb
	// Data holds page specific content, such as the blog listing.
	Data any
}

type ErrorPageProps struct {
	Site
	Title        string
	ErrorTitle   string
	ErrorMessage string
	BackLink     string
	BackText     string
}

type DonatePageProps struct {
	Site
	Title             string
	Currencies        []string
	Campaigns         map[string]string
	Status            string
	MidtransClientKey string
}

type LoginPageProps struct {
	Site
	Title              string
	FirebaseAPIKey     string
	FirebaseAuthDomain string
	FirebaseProjectID  string
	Error              string
}

type AdminPageProps struct {
	Site
	Title         string
	Contacts      []models.ContactSubmission
	Subscriptions []models.NewsletterSubscription
	Volunteers    []models.VolunteerRegistration
	Applications  []models.ProgramApplication
	Donations     []models.Donation
}

var templates = mustParse()

// mustParse clones the base layout for every page so that each page can
// define its own blocks.
func mustParse() map[string]*template.Template {
	funcs := template.FuncMap{
		"date": func(t time.Time) string { return t.Format("2 Jan 2006") },
		"deref": models.StringValue,
		"campaign": func(key string) string {
			if label, ok := models.Campaigns[key]; ok {
				return label
			}
			return key
		},
	}

	base := template.Must(template.New("").Funcs(funcs).ParseFS(files, "templates/base.html"))
	names, err := fs.Glob(files, "templates/*.html")
	if err != nil {
		panic(err)
	}

	out := make(map[string]*template.Template, len(names))
	for _, name := range names {
		page := strings.TrimSuffix(path.Base(name), ".html")
		if page == "base" {
			continue
		}
		t := template.Must(base.Clone())
		out[page] = template.Must(t.ParseFS(files, name))
	}
	return out
}

func render(page string, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return templates[page].ExecuteTemplate(w, "base", data)
	})
}

// Has reports whether a static page named name exists.
func Has(name string) bool {
	_, ok := templates[name]
	return ok && !strings.HasPrefix(name, "_")
}

func Page(name string, props PageProps) templ.Component { return render(name, props) }

func ErrorPage(props ErrorPageProps) templ.Component { return render("_error", props) }

func Donate(props DonatePageProps) templ.Component { return render("donate", props) }

func Login(props LoginPageProps) templ.Component { return render("_login", props) }

func Admin(props AdminPageProps) templ.Component { return render("_admin", props) }

// BlogPost renders a single post.
func BlogPost(props PageProps) templ.Component { return render("_blog_post", props) }

// HomeData is the content shown on the home page.
type HomeData struct {
	Testimonials []models.Testimonial
	Events       []models.Event
	Posts        []models.BlogPost
}

// BlogData is the blog listing, optionally narrowed to a category.
type BlogData struct {
	Category string
	Posts    []models.BlogPost
}
