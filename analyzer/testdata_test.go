package analyzer

const sampleContract = `SERVICE AGREEMENT

This Service Agreement is made on January 15, 2024 between TechSolutions Pvt. Ltd. (Service Provider) and Acme Traders LLP (Client).

1. Indemnification
The Service Provider shall indemnify, defend, and hold harmless the Client from and against any and all claims, damages, losses, costs, and expenses (including reasonable attorney fees) arising out of or relating to the Service Provider's negligence or willful misconduct.

2. Termination
The Service Provider may terminate this Agreement at any time with thirty (30) days written notice, without cause. The Client may only terminate for material breach after providing sixty (60) days written notice and opportunity to cure.

3. Auto-Renewal
This Agreement shall automatically renew for successive one (1) year periods unless either party provides written notice of non-renewal at least ninety (90) days prior to the end of the then-current term.

4. Limitation of Liability
In no event shall the Service Provider's total liability exceed the fees paid by Client in the twelve (12) months preceding the claim. The Service Provider shall not be liable for any indirect, incidental, special, consequential, or punitive damages.

5. Intellectual Property
All work product, deliverables, and intellectual property created by the Service Provider in connection with this Agreement shall be the sole and exclusive property of the Client upon full payment.

6. Non-Solicitation
During the term of this Agreement and for a period of two (2) years thereafter, the Client agrees not to directly or indirectly engage any employee or contractor of the Service Provider.

7. Arbitration
Any disputes arising from this Agreement shall be resolved through binding arbitration in Mumbai, Maharashtra, in accordance with the Arbitration and Conciliation Act, 1996. The language of arbitration shall be English.

8. Late Payment
Late payments shall accrue interest at the rate of 24% per annum, compounded monthly. Client shall also be liable for all costs of collection, including reasonable attorney fees.
`
