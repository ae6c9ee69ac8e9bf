// Package vlm loads image captioning models and exposes them behind a small
// service interface.
//
// Two backends exist. The hf backend talks to a Hugging Face
// inference-compatible HTTP endpoint with bounded transport retries. The
// ollama backend drives a local Ollama server through its Go client. Both
// resolve an execution device first (see SelectDevice) and report it through
// Model.Device.
package vlm
