// Package school holds the tenant-side read models the billing engine needs:
// organizations (tenants) with their billing configuration, students with
// their class enrollments, and guardian billing profiles.
//
// The school administration screens own these records. Billing only reads
// them, so the types here carry no mutating behaviour beyond small
// predicates used by eligibility checks.
package school
