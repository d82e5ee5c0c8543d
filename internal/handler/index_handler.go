package handler

import (
	"net/http"
)

// HandleIndex serves the chat page stored at indexPath.
func HandleIndex(indexPath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, indexPath)
	}
}

// redirectToIndex sends every unknown route back to the chat page.
func redirectToIndex(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusFound)
}
