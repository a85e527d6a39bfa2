// Package main is the entry point of CardForge, the server side of a digital business card
// platform. It serves a JSON API built on fiber for cards, themes, subscriptions, payments and
// phone verification, plus an admin area for languages, plans, translation history and the
// typed settings groups. Persistence goes through gorm (MySQL, PostgreSQL or SQLite).
package main
