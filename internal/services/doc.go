// Package services defines the error taxonomy shared by the external
// collaborator clients and the helpers used to classify their failures.
package services
