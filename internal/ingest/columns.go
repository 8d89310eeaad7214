package ingest

// Kind selects the coercion applied to a column.
type Kind int

const (
	KindText Kind = iota
	// KindUpper is enumerated text stored upper-cased.
	KindUpper
	KindMoney
	KindInt
	KindDate
	KindPhone
)

// Column describes one spreadsheet column.
type Column struct {
	Header string
	Key    string
	Kind   Kind
}

// Required headers of a case upload.
const (
	HeaderCaseNo     = "Case No"
	HeaderLoanType   = "Loan Type"
	HeaderDueEMIAmt  = "Due EMI Amt"
	HeaderEMIAmt     = "EMI Amt"
	HeaderArea       = "Area"
	HeaderCustomer   = "Customer Name"
	HeaderContactNo  = "Contact No"
	HeaderAltContact = "Alternate Contact No"
)

// RequiredColumns must be present and non-empty on every row.
var RequiredColumns = []string{HeaderCaseNo, HeaderLoanType, HeaderDueEMIAmt, HeaderEMIAmt, HeaderArea}

// DetailColumns are the optional descriptive columns. They are stored in the
// case details document under Key.
var DetailColumns = []Column{
	{Header: "Father Name", Key: "fatherName", Kind: KindText},
	{Header: "Address", Key: "address", Kind: KindText},
	{Header: "City", Key: "city", Kind: KindText},
	{Header: "State", Key: "state", Kind: KindUpper},
	{Header: "Pincode", Key: "pincode", Kind: KindText},
	{Header: "Branch", Key: "branch", Kind: KindText},
	{Header: "Product", Key: "product", Kind: KindUpper},
	{Header: "Vehicle No", Key: "vehicleNo", Kind: KindUpper},
	{Header: "Vehicle Model", Key: "vehicleModel", Kind: KindText},
	{Header: "Chassis No", Key: "chassisNo", Kind: KindText},
	{Header: "Engine No", Key: "engineNo", Kind: KindText},
	{Header: "Make", Key: "make", Kind: KindText},
	{Header: "Loan Amount", Key: "loanAmount", Kind: KindMoney},
	{Header: "Tenure", Key: "tenure", Kind: KindInt},
	{Header: "EMI Paid", Key: "emiPaid", Kind: KindInt},
	{Header: "POS", Key: "pos", Kind: KindMoney},
	{Header: "TOS", Key: "tos", Kind: KindMoney},
	{Header: "Bucket", Key: "bucket", Kind: KindUpper},
	{Header: "DPD", Key: "dpd", Kind: KindInt},
	{Header: "Disbursal Date", Key: "disbursalDate", Kind: KindDate},
	{Header: "First EMI Date", Key: "firstEmiDate", Kind: KindDate},
	{Header: "Last EMI Date", Key: "lastEmiDate", Kind: KindDate},
	{Header: "Last Payment Date", Key: "lastPaymentDate", Kind: KindDate},
	{Header: "Last Payment Amt", Key: "lastPaymentAmount", Kind: KindMoney},
	{Header: "Maturity Date", Key: "maturityDate", Kind: KindDate},
	{Header: "Co Applicant Name", Key: "coApplicantName", Kind: KindText},
	{Header: "Guarantor Name", Key: "guarantorName", Kind: KindText},
	{Header: "Guarantor Contact", Key: "guarantorContact", Kind: KindPhone},
	{Header: "Reference Name", Key: "referenceName", Kind: KindText},
	{Header: "Reference Contact", Key: "referenceContact", Kind: KindPhone},
	{Header: "Collection Manager", Key: "collectionManager", Kind: KindText},
	{Header: "Agency", Key: "agency", Kind: KindText},
	{Header: "Bounce Charges", Key: "bounceCharges", Kind: KindMoney},
	{Header: "Late Payment Charges", Key: "latePaymentCharges", Kind: KindMoney},
}

// Co-applicant upload headers.
const (
	HeaderName               = "Name"
	HeaderOwnershipIndicator = "Ownership Indicator"
)

// CoApplicantRequiredColumns must be present on every co-applicant row.
var CoApplicantRequiredColumns = []string{HeaderCaseNo, HeaderName, HeaderOwnershipIndicator}
