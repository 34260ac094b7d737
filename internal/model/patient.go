package model

// Patient is a row in the `patients` table. Patients are created either
// explicitly by a doctor or implicitly when an analysis submission
// carries patient details. A patient is owned by no single user and is
// referenced by zero or more results and doctor assignments.
//
// Fields:
//  ID     – primary key identifier.
//  Name   – patient display name.
//  Age    – age in years (nullable in the schema).
//  Gender – free-form gender string (nullable in the schema).
type Patient struct {
	ID     uint64  // patients.id
	Name   string  // patients.name
	Age    *uint8  // patients.age (nullable)
	Gender *string // patients.gender (nullable)
}

// DoctorPatient mirrors the `doctor_patient` link table. Each row grants
// the doctor read/write access to the patient's results. Rows are
// created by an admin action outside this service and consulted on
// every per-result read by a doctor identity.
type DoctorPatient struct {
	DoctorID  uint64 // doctor_patient.doctor_id
	PatientID uint64 // doctor_patient.patient_id
}
