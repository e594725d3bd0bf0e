// Package templates holds the server rendered dashboard page. Edit
// dashboard.templ and regenerate dashboard_templ.go with `templ generate`.
package templates
