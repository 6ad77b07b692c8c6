// Package bankfind implements the institution registry against the
// FDIC BankFind Suite API. It enriches first-time references with the
// institution's certificate number and legal name so later records
// resolve locally without another network call.
package bankfind
